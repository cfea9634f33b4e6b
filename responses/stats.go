package responses

type Stats struct {
	NumberOfPosts     int    `json:"numberOfPosts"`
	NumberOfOpenPosts int    `json:"numberOfOpenPosts"`
	Version           uint64 `json:"version"`
	// seconds
	RepoRuntime float64 `json:"repoRuntime"`
	// seconds
	OwnRuntime float64 `json:"ownRuntime"`
}
