package handler

// Route type
type Route string

const (
	// RouteGetCategories list the categories
	RouteGetCategories Route = "categories"
	// RouteGetPosts get the feed, optionally filtered by category
	RouteGetPosts Route = "posts"
	// RouteCreatePost create a need or an offer
	RouteCreatePost Route = "createPost"
	// RouteResolvePost close a post
	RouteResolvePost Route = "resolvePost"
	// RouteGetStats board numbers
	RouteGetStats Route = "stats"
	// RouteUpdate reload the feed from the store
	RouteUpdate Route = "update"
	// RouteGetRepo get the whole feed as stored in the history
	RouteGetRepo Route = "repo"
	// RouteFeed live feed as server sent events
	RouteFeed Route = "feed"
	// RouteFeedWebSocket live feed over a websocket
	RouteFeedWebSocket Route = "feedWebSocket"
	// RouteSignIn anonymous sign in
	RouteSignIn Route = "signIn"
	// RouteNewsletter subscribe to the newsletter
	RouteNewsletter Route = "newsletter"
	// RouteUnknown anything else
	RouteUnknown Route = "unknown"
)

// Paths relative to the base path
const (
	PathCategories  = "/categories"
	PathPosts       = "/posts"
	PathResolvePost = "/posts/{id}/resolve"
	PathStats       = "/stats"
	PathUpdate      = "/update"
	PathRepo        = "/repo"
	PathFeed        = "/feed"
	PathFeedWS      = "/feed/ws"
	PathSignIn      = "/auth/anonymous"
	PathNewsletter  = "/newsletter"
)
