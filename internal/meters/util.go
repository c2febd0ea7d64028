package meters

import "sort"

func sortDailyUsage(days []DailyUsage) {
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
}
