package domain

// NativeSymbol is the asset symbol used when a record names no token.
const NativeSymbol = "ETH"

// ExportHeader is the fixed column header of the export file.
var ExportHeader = []string{
	"Transaction Hash",
	"Date & Time",
	"From Address",
	"To Address",
	"Transaction Type",
	"Asset Contract Address",
	"Asset Symbol / Name",
	"Token ID",
	"Value / Amount",
	"Gas Fee (ETH)",
}

// TransactionRecord is one normalized row of wallet activity.
type TransactionRecord struct {
	Hash                 string
	Timestamp            string
	FromAddress          string
	ToAddress            string
	TransactionType      TransactionType
	AssetContractAddress string
	AssetSymbol          string
	TokenID              string
	Value                string
	GasFeeInNativeUnit   string
}

// Row renders the record in ExportHeader column order.
func (r TransactionRecord) Row() []string {
	return []string{
		r.Hash,
		r.Timestamp,
		r.FromAddress,
		r.ToAddress,
		r.TransactionType.String(),
		r.AssetContractAddress,
		r.AssetSymbol,
		r.TokenID,
		r.Value,
		r.GasFeeInNativeUnit,
	}
}

// RawTransaction is one element of an explorer `result` array, decoded with
// json.Number so integers keep their precision.
type RawTransaction map[string]any

// PageRequest addresses one page of one category's history.
type PageRequest struct {
	Address  string
	Category FetchCategory
	Page     int
	PageSize int
}

// RawResponse is what the transport returned for a page request.
type RawResponse struct {
	StatusCode int
	Body       []byte
}
