/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// citycat is a utility for reviewing journaled entity event logs. It
// understands the file-backed internal/journal format and can print,
// filter, and replay an entity's recorded history for problem
// reproduction and debugging, over per-entity event journals.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/alecthomas/kingpin.v2"

	_ "github.com/cityflow/actorcity/entity"
	_ "github.com/cityflow/actorcity/internal/immovable"
	"github.com/cityflow/actorcity/internal/journal"
	_ "github.com/cityflow/actorcity/internal/mobile"
)

type arguments struct {
	journalDir string
	entityID   string
	fromSeq    uint64
	eventTypes []string
	verbose    bool
}

func excludeByType(value string, include []string) bool {
	if include == nil {
		return false
	}
	for _, name := range include {
		if name == value {
			return false
		}
	}
	return true
}

func (a *arguments) execute(output *os.File) error {
	j, err := journal.NewFile(a.journalDir)
	if err != nil {
		return errors.WithMessage(err, "could not open journal directory")
	}

	records, err := j.Replay(a.entityID, a.fromSeq)
	if err != nil {
		return errors.WithMessagef(err, "could not replay journal for %q", a.entityID)
	}

	for _, rec := range records {
		typeName := fmt.Sprintf("%T", rec.Event)
		if excludeByType(typeName, a.eventTypes) {
			continue
		}
		if a.verbose {
			fmt.Fprintf(output, "% 6d %s %+v\n", rec.SeqNr, typeName, rec.Event)
		} else {
			fmt.Fprintf(output, "% 6d %s\n", rec.SeqNr, typeName)
		}
	}
	return nil
}

func parseArgs(args []string) (*arguments, error) {
	app := kingpin.New("citycat", "Utility for inspecting simulation entity event journals.")
	journalDir := app.Flag("journalDir", "Directory containing per-entity .journal files.").Required().String()
	entityID := app.Flag("entityID", "Entity whose journal to replay (e.g. L-lane-12).").Required().String()
	fromSeq := app.Flag("fromSeq", "Only print records at or after this sequence number.").Default("0").Uint64()
	eventTypes := app.Flag("eventType", "Which event type names to report (repeatable); omit for all.").Strings()
	verbose := app.Flag("verbose", "Print each event's full decoded value.").Default("false").Bool()

	if _, err := app.Parse(args); err != nil {
		return nil, err
	}

	return &arguments{
		journalDir: *journalDir,
		entityID:   *entityID,
		fromSeq:    *fromSeq,
		eventTypes: *eventTypes,
		verbose:    *verbose,
	}, nil
}

func main() {
	kingpin.Version("0.0.1")
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		kingpin.Fatalf("failed to parse arguments, %s, try --help", err)
	}
	if err := args.execute(os.Stdout); err != nil {
		fmt.Println("")
		kingpin.Fatalf("%s", err)
	}
}
