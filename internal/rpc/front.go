package rpc

import "tribbler/internal/front"

// Front-end request/response shapes.

type Username struct {
	User string `json:"user"`
}

type PostRequest struct {
	Who     string `json:"who"`
	Message string `json:"message"`
	Clock   uint64 `json:"clock"`
}

type WhoWhom struct {
	Who  string `json:"who"`
	Whom string `json:"whom"`
}

type TribList struct {
	Tribs []*front.Trib `json:"tribs"`
}
