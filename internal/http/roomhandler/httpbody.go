package roomhandler

import "time"

type MembersResponse struct {
	RoomID  string   `json:"roomId"  example:"abc123"`
	Aliases []string `json:"aliases" example:"Alice,Bob"`
} // @name MembersResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListMessagesQuery struct {
	Limit  int       `form:"limit,default=0" binding:"gte=0,lte=500"`
	Before time.Time `form:"before"          time_format:"2006-01-02T15:04:05Z07:00"`
} // @name ListMessagesQuery
