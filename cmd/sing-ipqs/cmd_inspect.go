package main

import (
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/sagernet/sing-ipqs/common/ipqsdb"
	E "github.com/sagernet/sing/common/exceptions"

	"github.com/spf13/cobra"
)

var commandInspect = &cobra.Command{
	Use:   "inspect",
	Short: "Print header facts of a reputation database file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect()
	},
}

func init() {
	mainCommand.AddCommand(commandInspect)
}

func inspect() error {
	reader, err := ipqsdb.OpenFile(databasePath)
	if err != nil {
		return E.Cause(err, "open database")
	}
	defer reader.Close()

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer writer.Flush()

	family := "IPv4"
	if reader.IsIPv6() {
		family = "IPv6"
	}
	writeRow(writer, "Family", family)
	writeRow(writer, "Blacklist", strconv.FormatBool(reader.IsBlacklist()))
	writeRow(writer, "Record bytes", strconv.Itoa(reader.RecordBytes()))
	columns := reader.Columns()
	writeRow(writer, "Columns", strconv.Itoa(len(columns)))
	for _, column := range columns {
		writeRow(writer, "  "+column.Name, column.Kind())
	}
	return nil
}

func writeRow(writer *tabwriter.Writer, name, value string) {
	writer.Write([]byte(name + "\t" + value + "\n"))
}
