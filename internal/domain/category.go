package domain

// FetchCategory selects one explorer history endpoint.
type FetchCategory int

const (
	CategoryNativeTransfer FetchCategory = iota
	CategoryFungibleToken
	CategoryNftOrMultiToken
)

// Categories returns every category in merge order.
func Categories() []FetchCategory {
	return []FetchCategory{
		CategoryNativeTransfer,
		CategoryFungibleToken,
		CategoryNftOrMultiToken,
	}
}

// Action is the explorer `action` parameter for the category.
func (c FetchCategory) Action() string {
	switch c {
	case CategoryNativeTransfer:
		return "txlist"
	case CategoryFungibleToken:
		return "tokentx"
	case CategoryNftOrMultiToken:
		return "tokennfttx"
	default:
		return ""
	}
}

// DefaultType is the transaction type assigned when the raw record carries
// nothing more specific.
func (c FetchCategory) DefaultType() TransactionType {
	switch c {
	case CategoryNativeTransfer:
		return TypeNativeTransfer
	case CategoryFungibleToken:
		return TypeFungibleToken
	case CategoryNftOrMultiToken:
		return TypeContractInteraction
	default:
		return TypeUnknown
	}
}

func (c FetchCategory) String() string {
	switch c {
	case CategoryNativeTransfer:
		return "native"
	case CategoryFungibleToken:
		return "fungible_token"
	case CategoryNftOrMultiToken:
		return "nft"
	default:
		return "unknown"
	}
}

// TransactionType is the normalized kind written to the export.
type TransactionType int

const (
	TypeUnknown TransactionType = iota
	TypeNativeTransfer
	TypeFungibleToken
	TypeNonFungibleOrMultiToken
	TypeContractInteraction
)

func (t TransactionType) String() string {
	switch t {
	case TypeNativeTransfer:
		return "ETH Transfer"
	case TypeFungibleToken:
		return "ERC-20"
	case TypeNonFungibleOrMultiToken:
		return "ERC-721 / ERC-1155"
	case TypeContractInteraction:
		return "Contract Interaction"
	default:
		return "Unknown"
	}
}
