package musicbrainz

type artistSearchResponse struct {
	Count   int            `json:"count"`
	Offset  int            `json:"offset"`
	Artists []artistResult `json:"artists"`
}

type artistResult struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Score     int         `json:"score"`
	Name      string      `json:"name"`
	Country   string      `json:"country"`
	Area      areaResult  `json:"area"`
	BeginArea areaResult  `json:"begin-area"`
	Tags      []tagResult `json:"tags"`
}

type areaResult struct {
	Name string `json:"name"`
}

type tagResult struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}
