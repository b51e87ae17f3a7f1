package http

import "github.com/couchcryptid/rpp-data-etl-service/internal/domain"

// display carries pre-rendered values for the presentation tier.
type display struct {
	RPPAll       string `json:"rpp_all"`
	RPPGoods     string `json:"rpp_goods"`
	RPPServices  string `json:"rpp_services"`
	RPPRents     string `json:"rpp_rents"`
	Diff         string `json:"diff"`
	Population   string `json:"population"`
	MedianIncome string `json:"median_income"`
}

type metroDetail struct {
	domain.Metro
	Display display `json:"display"`
}

type stateDetail struct {
	domain.State
	Display display `json:"display"`
}

func newDisplay(all, goods, services, rents *float64, population, income *int64) display {
	var incomeText string
	if income != nil {
		v := float64(*income)
		incomeText = domain.FormatMoney(&v)
	} else {
		incomeText = domain.Placeholder
	}
	return display{
		RPPAll:       domain.FormatIndex(all),
		RPPGoods:     domain.FormatIndex(goods),
		RPPServices:  domain.FormatIndex(services),
		RPPRents:     domain.FormatIndex(rents),
		Diff:         domain.RPPDiffOf(all),
		Population:   domain.FormatNumber(population),
		MedianIncome: incomeText,
	}
}

func metroView(m domain.Metro) metroDetail {
	return metroDetail{
		Metro:   m,
		Display: newDisplay(m.RPPAll, m.RPPGoods, m.RPPServices, m.RPPRents, m.Population, m.MedianIncome),
	}
}

func stateView(s domain.State) stateDetail {
	return stateDetail{
		State:   s,
		Display: newDisplay(s.RPPAll, s.RPPGoods, s.RPPServices, s.RPPRents, s.Population, s.MedianIncome),
	}
}
