package application

import (
	"encoding/json"
	"testing"

	"txexport/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaultsForEmptyObject(t *testing.T) {
	n := Normalizer{}
	for _, category := range domain.Categories() {
		record := n.Normalize(domain.RawTransaction{}, category)
		assert.Equal(t, "", record.Hash)
		assert.Equal(t, "1970-01-01 00:00:00", record.Timestamp)
		assert.Equal(t, "", record.FromAddress)
		assert.Equal(t, "", record.ToAddress)
		assert.Equal(t, "", record.AssetContractAddress)
		assert.Equal(t, "ETH", record.AssetSymbol)
		assert.Equal(t, "", record.TokenID)
		assert.Equal(t, "", record.Value)
		assert.Equal(t, "0", record.GasFeeInNativeUnit)
		assert.Equal(t, category.DefaultType(), record.TransactionType)
	}
}

func TestNormalizeGasFee(t *testing.T) {
	record := Normalizer{}.Normalize(domain.RawTransaction{
		"gasPrice": "2000000000",
		"gasUsed":  "21000",
	}, domain.CategoryNativeTransfer)
	assert.Equal(t, "0.000042000000000000", record.GasFeeInNativeUnit)
}

func TestNormalizeGasFeeFromJSONNumbers(t *testing.T) {
	record := Normalizer{}.Normalize(domain.RawTransaction{
		"gasPrice": json.Number("1000000000000000000"),
		"gasUsed":  json.Number("3"),
	}, domain.CategoryFungibleToken)
	assert.Equal(t, "3.000000000000000000", record.GasFeeInNativeUnit)
}

func TestGasFeeFallsBackToZero(t *testing.T) {
	assert.Equal(t, "0", GasFee("abc", "21000"))
	assert.Equal(t, "0", GasFee("2000000000", ""))
	assert.Equal(t, "0", GasFee("-1", "21000"))
	assert.Equal(t, "0.000000000000000000", GasFee("0", "21000"))

	record := Normalizer{}.Normalize(domain.RawTransaction{"gasPrice": "2000000000"}, domain.CategoryNativeTransfer)
	assert.Equal(t, "0", record.GasFeeInNativeUnit)

	record = Normalizer{}.Normalize(domain.RawTransaction{"gasPrice": nil, "gasUsed": "1"}, domain.CategoryNativeTransfer)
	assert.Equal(t, "0", record.GasFeeInNativeUnit)
}

func TestGasFeeRoundsHalfUp(t *testing.T) {
	assert.Equal(t, "0.000000000000000002", GasFee("1.5", "1"))
	assert.Equal(t, "0.000000000000000001", GasFee("1.4", "1"))
}

func TestNormalizeNativeTransfer(t *testing.T) {
	record := Normalizer{}.Normalize(domain.RawTransaction{
		"hash":      "0xaaa",
		"timeStamp": "1700000000",
		"from":      "0xfrom",
		"to":        "0xto",
		"value":     "123456789012345678901234567890",
	}, domain.CategoryNativeTransfer)

	assert.Equal(t, domain.TransactionRecord{
		Hash:               "0xaaa",
		Timestamp:          "2023-11-14 22:13:20",
		FromAddress:        "0xfrom",
		ToAddress:          "0xto",
		TransactionType:    domain.TypeNativeTransfer,
		AssetSymbol:        "ETH",
		Value:              "123456789012345678901234567890",
		GasFeeInNativeUnit: "0",
	}, record)
}

func TestNormalizeTokenTransfer(t *testing.T) {
	record := Normalizer{NativeSymbol: "MATIC"}.Normalize(domain.RawTransaction{
		"contractAddress": "0xusdc",
		"tokenSymbol":     "USDC",
		"value":           "1000000",
	}, domain.CategoryFungibleToken)

	assert.Equal(t, domain.TypeFungibleToken, record.TransactionType)
	assert.Equal(t, "0xusdc", record.AssetContractAddress)
	assert.Equal(t, "USDC", record.AssetSymbol)
	assert.Equal(t, "", record.TokenID)
}

func TestNormalizeNativeSymbolOverride(t *testing.T) {
	record := Normalizer{NativeSymbol: "MATIC"}.Normalize(domain.RawTransaction{}, domain.CategoryNativeTransfer)
	assert.Equal(t, "MATIC", record.AssetSymbol)
}

func TestNormalizeNFTTypeDependsOnTokenID(t *testing.T) {
	withID := Normalizer{}.Normalize(domain.RawTransaction{"tokenID": "42"}, domain.CategoryNftOrMultiToken)
	assert.Equal(t, domain.TypeNonFungibleOrMultiToken, withID.TransactionType)
	assert.Equal(t, "42", withID.TokenID)

	nullID := Normalizer{}.Normalize(domain.RawTransaction{"tokenID": nil}, domain.CategoryNftOrMultiToken)
	assert.Equal(t, domain.TypeNonFungibleOrMultiToken, nullID.TransactionType)
	assert.Empty(t, nullID.TokenID)

	withoutID := Normalizer{}.Normalize(domain.RawTransaction{}, domain.CategoryNftOrMultiToken)
	assert.Equal(t, domain.TypeContractInteraction, withoutID.TransactionType)

	// tokenID on a fungible transfer does not change its type.
	token := Normalizer{}.Normalize(domain.RawTransaction{"tokenID": "1"}, domain.CategoryFungibleToken)
	assert.Equal(t, domain.TypeFungibleToken, token.TransactionType)
}

func TestNormalizeUnknownCategory(t *testing.T) {
	record := Normalizer{}.Normalize(domain.RawTransaction{"tokenID": "7"}, domain.FetchCategory(99))
	assert.Equal(t, domain.TypeUnknown, record.TransactionType)
	assert.Equal(t, "Unknown", record.TransactionType.String())
}

func TestNormalizeMalformedTimestamp(t *testing.T) {
	record := Normalizer{}.Normalize(domain.RawTransaction{"timeStamp": "yesterday"}, domain.CategoryNativeTransfer)
	assert.Equal(t, "1970-01-01 00:00:00", record.Timestamp)

	record = Normalizer{}.Normalize(domain.RawTransaction{"timeStamp": json.Number("86400")}, domain.CategoryNativeTransfer)
	assert.Equal(t, "1970-01-02 00:00:00", record.Timestamp)
}
