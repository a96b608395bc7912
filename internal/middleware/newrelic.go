package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NoticeError records err on the request's New Relic transaction, if any,
// and attaches it to the gin context for the access log.
func NoticeError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	if txn := nrgin.Transaction(c); txn != nil {
		txn.NoticeError(err)
	}
}
