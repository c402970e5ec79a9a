package usgs

// instantaneousValuesResponse mirrors the WaterML-JSON payload returned by the
// instantaneous-values service. Only the fields the sync needs are declared.
type instantaneousValuesResponse struct {
	Value struct {
		TimeSeries []timeSeries `json:"timeSeries"`
	} `json:"value"`
}

type timeSeries struct {
	SourceInfo struct {
		SiteName string     `json:"siteName"`
		SiteCode []siteCode `json:"siteCode"`
	} `json:"sourceInfo"`
	Variable struct {
		// NoDataValue marks points the sensor could not measure (-999999).
		NoDataValue float64 `json:"noDataValue"`
	} `json:"variable"`
	Values []valueBlock `json:"values"`
}

type siteCode struct {
	Value string `json:"value"`
}

type valueBlock struct {
	Value []timedValue `json:"value"`
}

type timedValue struct {
	Value      string   `json:"value"`
	Qualifiers []string `json:"qualifiers"`
	DateTime   string   `json:"dateTime"`
}
