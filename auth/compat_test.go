package auth

import (
	"github.com/coursebook/coursebook-go/httpclient"
)

// TokenStore must satisfy the client pipeline's storage contract.
var _ httpclient.TokenStore = (*TokenStore)(nil)
