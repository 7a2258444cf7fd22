// Command semitexa is the schema toolkit for the demo resource set: status,
// diff, sync, and seed against the configured MySQL database.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/semitexa/orm/cli"
	"github.com/semitexa/orm/schema"
)

func main() {
	collector := schema.NewCollector(
		&User{},
		&Order{},
		&OrderItem{},
		&Tag{},
	)
	app := cli.New(collector)
	if err := app.RootCommand().Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}
