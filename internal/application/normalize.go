package application

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"txexport/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	weiExponent     = 18
)

// Normalizer maps raw explorer objects onto TransactionRecord.
type Normalizer struct {
	NativeSymbol string
}

// Normalize never fails: absent or malformed fields fall back to "", "0" or
// the native symbol.
func (n Normalizer) Normalize(raw domain.RawTransaction, category domain.FetchCategory) domain.TransactionRecord {
	symbol := n.NativeSymbol
	if symbol == "" {
		symbol = domain.NativeSymbol
	}
	if s, ok := field(raw, "tokenSymbol"); ok {
		symbol = s
	}
	tokenID := optField(raw, "tokenID")
	// A null tokenID still marks the row as an NFT transfer.
	_, hasTokenID := raw["tokenID"]

	return domain.TransactionRecord{
		Hash:                 optField(raw, "hash"),
		Timestamp:            formatTimestamp(optField(raw, "timeStamp")),
		FromAddress:          optField(raw, "from"),
		ToAddress:            optField(raw, "to"),
		TransactionType:      transactionType(category, hasTokenID),
		AssetContractAddress: optField(raw, "contractAddress"),
		AssetSymbol:          symbol,
		TokenID:              tokenID,
		Value:                optField(raw, "value"),
		GasFeeInNativeUnit:   gasFee(raw),
	}
}

func transactionType(category domain.FetchCategory, hasTokenID bool) domain.TransactionType {
	if category == domain.CategoryNftOrMultiToken && hasTokenID {
		return domain.TypeNonFungibleOrMultiToken
	}
	return category.DefaultType()
}

// GasFee returns gasPrice*gasUsed in native units with 18 fractional digits,
// or "0" when either input is unusable.
func GasFee(gasPrice, gasUsed string) string {
	price, err := decimal.NewFromString(strings.TrimSpace(gasPrice))
	if err != nil || price.IsNegative() {
		return "0"
	}
	used, err := decimal.NewFromString(strings.TrimSpace(gasUsed))
	if err != nil || used.IsNegative() {
		return "0"
	}
	return price.Mul(used).Shift(-weiExponent).StringFixed(weiExponent)
}

func gasFee(raw domain.RawTransaction) string {
	price, ok := field(raw, "gasPrice")
	if !ok {
		return "0"
	}
	used, ok := field(raw, "gasUsed")
	if !ok {
		return "0"
	}
	return GasFee(price, used)
}

func formatTimestamp(raw string) string {
	seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		seconds = 0
	}
	return time.UnixMilli(seconds * 1000).UTC().Format(timestampLayout)
}

func optField(raw domain.RawTransaction, key string) string {
	value, _ := field(raw, key)
	return value
}

// field reports a key as present only when it holds a non-null value.
func field(raw domain.RawTransaction, key string) (string, bool) {
	value, ok := raw[key]
	if !ok || value == nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v), true
		}
		return string(encoded), true
	}
}
