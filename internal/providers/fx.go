package providers

import (
	"github.com/revolutionai/storefront/internal/providers/email"
	"github.com/revolutionai/storefront/internal/providers/pdf"
	"github.com/revolutionai/storefront/internal/providers/sns"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	sns.Module,
	pdf.Module,
)
