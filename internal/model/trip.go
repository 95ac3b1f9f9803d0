package model

// Friend is a server-owned contact. Selected is client-only UI state and is
// never sent to or read from the server.
type Friend struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Selected bool   `json:"-"`
}

// Location is a saved place owned by the server.
type Location struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TripRequest asks the server for a trip with the given friends.
type TripRequest struct {
	FriendIDs []int `json:"friend_ids"`
}

type Attraction struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// TripResult is the server's answer to a TripRequest.
type TripResult struct {
	Destination         string       `json:"destination"`
	Attractions         []Attraction `json:"attractions"`
	AISuggestion        string       `json:"ai_suggestion,omitempty"`
	CommonLocationFound bool         `json:"common_location_found"`
	FallbackMessage     string       `json:"fallback_message,omitempty"`
}

// FriendRef is the id+name pair handed to the result view.
type FriendRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TripPayload is what the planning view hands to the result view when it
// navigates. It only lives for that one navigation.
type TripPayload struct {
	Result  TripResult
	Friends []FriendRef
}

// SelectedFriends returns the friends marked Selected, in list order.
func SelectedFriends(friends []Friend) []Friend {
	var out []Friend
	for _, f := range friends {
		if f.Selected {
			out = append(out, f)
		}
	}
	return out
}
