package httpdto

type OnlineUsersResponse struct {
	UserIDs []string `json:"user_ids"`
}
