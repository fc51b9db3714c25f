package model

import "sort"

// NewCustomerWindowMillis is period in milliseconds customer is considered new after creation
const NewCustomerWindowMillis int64 = 30 * 24 * 60 * 60 * 1000

// CountryCount is number of customers living in country
type CountryCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Statistics is aggregated customers data for dashboard
type Statistics struct {
	TotalCount     int            `json:"totalCustomers"`
	NewCount       int            `json:"newCustomers"`
	CountByCountry map[string]int `json:"countByCountry"`
	Countries      []CountryCount `json:"countryData"`
}

// StatisticsBuilder folds scanned customers into Statistics
type StatisticsBuilder struct {
	since int64
	stats Statistics
}

// NewStatisticsBuilder creates builder counting customers created within window before now (epoch millis)
func NewStatisticsBuilder(now int64) *StatisticsBuilder {
	return &StatisticsBuilder{
		since: now - NewCustomerWindowMillis,
		stats: Statistics{CountByCountry: make(map[string]int)},
	}
}

// Add accounts single customer, blank country is kept as separate group
func (b *StatisticsBuilder) Add(createdAt int64, country string) {
	b.stats.TotalCount++
	if createdAt >= b.since {
		b.stats.NewCount++
	}
	b.stats.CountByCountry[country]++
}

// Build returns collected statistics
func (b *StatisticsBuilder) Build() *Statistics {
	countries := make([]CountryCount, 0, len(b.stats.CountByCountry))
	for name, value := range b.stats.CountByCountry {
		countries = append(countries, CountryCount{Name: name, Value: value})
	}

	sort.Slice(countries, func(i, j int) bool {
		if countries[i].Value != countries[j].Value {
			return countries[i].Value > countries[j].Value
		}
		return countries[i].Name < countries[j].Name
	})

	stats := b.stats
	stats.Countries = countries
	return &stats
}
