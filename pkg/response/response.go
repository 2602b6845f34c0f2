package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/ringlink/pkg/errcode"
)

// Response represents a standard API response
type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success sends a success response
func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: 0,
		Msg:  "success",
		Data: data,
	})
}

// Error sends an error response. Errors without a business code are logged
// and reported as internal errors.
func Error(ctx context.Context, c *app.RequestContext, err error) {
	e, ok := errcode.As(err)
	if !ok {
		log.CtxError(ctx, "unhandled error: path=%s, error=%v", c.FullPath(), err)
		e = errcode.ErrInternalServer
	}

	c.JSON(http.StatusOK, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}

// ErrorWithCode sends an error response with specific error code
func ErrorWithCode(ctx context.Context, c *app.RequestContext, e *errcode.Error) {
	c.JSON(http.StatusOK, Response{
		Code: e.Code,
		Msg:  e.Msg,
	})
}

// Fail sends an error response with a non-200 status, for callers such as
// provider webhooks that look at the status code only
func Fail(ctx context.Context, c *app.RequestContext, status int, e *errcode.Error, data interface{}) {
	c.JSON(status, Response{
		Code: e.Code,
		Msg:  e.Msg,
		Data: data,
	})
}
