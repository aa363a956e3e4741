// Package respond renders the HTTP response envelope shared by every
// participant service: {success, data?, message?, error?}, always HTTP
// 200 for well-formed requests per spec.md §6.
package respond

import "github.com/gin-gonic/gin"

// Envelope is the JSON shape every endpoint in this system returns.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// OK writes a successful envelope with a 200 status.
func OK(c *gin.Context, data interface{}) {
	c.JSON(200, Envelope{Success: true, Data: data})
}

// Message writes a successful envelope carrying a human-readable
// message instead of (or in addition to) data.
func Message(c *gin.Context, message string, data interface{}) {
	c.JSON(200, Envelope{Success: true, Data: data, Message: message})
}

// Fail writes {success:false, message} with HTTP 200 — used for
// business-level non-failures such as "SagaLog not found", which the
// publisher must treat as delivered, not as a transport error.
func Fail(c *gin.Context, message string) {
	c.JSON(200, Envelope{Success: false, Message: message})
}

// Err writes {success:false, error} with a non-2xx status — used for
// validation failures and unexpected server errors, the only cases the
// outbox publisher should retry or give up on.
func Err(c *gin.Context, status int, err error) {
	c.JSON(status, Envelope{Success: false, Error: err.Error()})
}
