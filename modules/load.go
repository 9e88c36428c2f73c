package modules

import (
	"github.com/shipos/shipos/modules/migration"
	"github.com/shipos/shipos/pkg/application"
	"github.com/shipos/shipos/pkg/configuration"
)

func BuiltInModules(conf *configuration.Configuration) []application.Module {
	return []application.Module{
		migration.NewModule(migration.OptionsFromConfig(conf)),
	}
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
