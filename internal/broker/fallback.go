// internal/broker/fallback.go
//
// Last-known-good broker set.
//
// When the database is down, times out, or holds no active rows, the
// fetcher serves this manually curated list instead of an empty page.
// Keep it short and review it whenever the top global rankings shift.
package broker

// Fallback returns a fresh copy of the hardcoded broker set so callers
// may mutate their slice freely.
func Fallback() []Broker {
	out := make([]Broker, len(fallbackBrokers))
	copy(out, fallbackBrokers)
	return out
}

var fallbackBrokers = []Broker{
	{
		ID:           1,
		Name:         "Interactive Brokers",
		Slug:         "interactive-brokers",
		Rating:       4.8,
		MinDeposit:   0,
		Description:  "Professional-grade platform with global market access.",
		WebsiteURL:   "https://www.interactivebrokers.com",
		SortOrder:    1,
		InvestorBase: "2.6M+",
		FoundedYear:  1978,
	},
	{
		ID:           2,
		Name:         "eToro",
		Slug:         "etoro",
		Rating:       4.5,
		MinDeposit:   50,
		Description:  "Social trading with copy-portfolio features.",
		WebsiteURL:   "https://www.etoro.com",
		SortOrder:    2,
		InvestorBase: "35M+",
		FoundedYear:  2007,
	},
	{
		ID:           3,
		Name:         "XTB",
		Slug:         "xtb",
		Rating:       4.4,
		MinDeposit:   0,
		Description:  "Commission-free stocks and ETFs with a polished app.",
		WebsiteURL:   "https://www.xtb.com",
		SortOrder:    3,
		InvestorBase: "1M+",
		FoundedYear:  2002,
	},
	{
		ID:           4,
		Name:         "Plus500",
		Slug:         "plus500",
		Rating:       4.1,
		MinDeposit:   100,
		Description:  "Simple CFD platform with broad instrument coverage.",
		WebsiteURL:   "https://www.plus500.com",
		SortOrder:    4,
		InvestorBase: "26M+",
		FoundedYear:  2008,
	},
}
