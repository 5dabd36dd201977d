package api

import "encoding/json"

// ListQuery is the paging, filtering and ordering sent to a list endpoint.
// Filters and OrderBy are already-encoded JSON; empty means omitted.
type ListQuery struct {
	Offset  int
	Limit   int
	Filters string
	OrderBy string
}

// Meta is the paging envelope returned by osparc list endpoints.
type Meta struct {
	Total  int `json:"total"`
	Count  int `json:"count"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Links holds the navigation URLs of a page.
type Links struct {
	Self  string `json:"self"`
	First string `json:"first"`
	Prev  string `json:"prev"`
	Next  string `json:"next"`
	Last  string `json:"last"`
}

// ListPage is one page of records.
type ListPage struct {
	Meta  Meta                     `json:"_meta"`
	Links Links                    `json:"_links"`
	Data  []map[string]interface{} `json:"data"`
}

// Profile is the subset of /v0/me used to verify credentials.
type Profile struct {
	ID        json.Number `json:"id"`
	Login     string      `json:"login"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
}

// Wallet is a credit wallet the user has access to.
type Wallet struct {
	WalletID         int     `json:"wallet_id"`
	Name             string  `json:"name"`
	Owner            int     `json:"owner"`
	Status           string  `json:"status"`
	AvailableCredits float64 `json:"available_credits"`
}
