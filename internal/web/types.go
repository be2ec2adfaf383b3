package web

type ResultRow struct {
	Rank                int
	Name                string
	Avatar              string
	Score               int
	Correct             int
	Wrong               int
	AverageResponseTime string
}

type ResultPage struct {
	GameCode  string
	CreatedAt string
	Rows      []ResultRow
}
