package symbol

type YahooConverter struct{}

func (YahooConverter) ToSource(ticker string) string {
	return Query(ticker)
}

// FromSource cannot recover "BRK.B" from "BRK-B"; it only strips the exchange suffix.
func (YahooConverter) FromSource(raw string) string {
	return Display(raw)
}

func (YahooConverter) Format() Format {
	return FormatYahoo
}

var Yahoo = YahooConverter{}
