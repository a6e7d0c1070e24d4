package document

import "go.uber.org/fx"

var Module = fx.Module("invoice.document",
	fx.Provide(NewRenderer),
)
