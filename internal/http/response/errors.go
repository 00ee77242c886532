package response

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/speech-to-contract/internal/platform/apierr"
)

// RespondAPIError writes err as the error envelope. Errors that are not an
// *apierr.Error answer 500 with code "internal".
func RespondAPIError(c *gin.Context, err error) {
	ae := apierr.As(err, "internal")
	if ae == nil {
		return
	}
	RespondError(c, ae.Status, ae.Code, ae)
}
