package types

import "strings"

// zeroDecimalCurrencies have no minor units
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true,
	"xpf": true,
}

var threeDecimalCurrencies = map[string]bool{
	"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
}

// GetCurrencyPrecision returns the number of fractional digits an invoice
// amount is rounded to when materialized
func GetCurrencyPrecision(currency string) int32 {
	c := strings.ToLower(currency)
	if zeroDecimalCurrencies[c] {
		return 0
	}
	if threeDecimalCurrencies[c] {
		return 3
	}
	return 2
}
