package commune

import "strconv"

// Arrondissement is a municipal district of Paris, Lyon or Marseille. It has
// its own INSEE code but belongs to a parent commune.
type Arrondissement struct {
	Code       string
	ParentCode string
	ParentName string
}

type arrondissementRange struct {
	first, last int
	parentCode  string
	parentName  string
}

var arrondissementRanges = []arrondissementRange{
	{first: 75101, last: 75120, parentCode: "75056", parentName: "Paris"},
	{first: 69381, last: 69389, parentCode: "69123", parentName: "Lyon"},
	{first: 13201, last: 13216, parentCode: "13055", parentName: "Marseille"},
}

// LookupArrondissement returns the arrondissement with the given INSEE code.
func LookupArrondissement(code string) (Arrondissement, bool) {
	if len(code) != 5 {
		return Arrondissement{}, false
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return Arrondissement{}, false
	}
	for _, r := range arrondissementRanges {
		if n >= r.first && n <= r.last {
			return Arrondissement{Code: code, ParentCode: r.parentCode, ParentName: r.parentName}, true
		}
	}
	return Arrondissement{}, false
}
