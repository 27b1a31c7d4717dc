package catalogtype

import (
	"github.com/smallbiznis/catalog/internal/catalogtype/repository"
	"github.com/smallbiznis/catalog/internal/catalogtype/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalogtype.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
