package invoice

import (
	"github.com/smallbiznis/vetbilling/internal/invoice/document"
	"github.com/smallbiznis/vetbilling/internal/invoice/repository"
	"github.com/smallbiznis/vetbilling/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	document.Module,
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
