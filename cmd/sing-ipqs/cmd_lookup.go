package main

import (
	"context"
	"encoding/json"
	"net/netip"
	"os"
	"time"

	"github.com/sagernet/sing-ipqs/common/asn"
	"github.com/sagernet/sing-ipqs/common/ipqsdb"
	"github.com/sagernet/sing-ipqs/log"
	"github.com/sagernet/sing-ipqs/option"
	E "github.com/sagernet/sing/common/exceptions"

	"github.com/spf13/cobra"
)

var (
	outputFormat string
	strictness   uint8
	asnDatabase  string
)

var commandLookup = &cobra.Command{
	Use:   "lookup <address>",
	Short: "Fetch the reputation record for an IP address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return lookup(args[0])
	},
}

func init() {
	commandLookup.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format: text or json")
	commandLookup.Flags().Uint8VarP(&strictness, "strictness", "s", 0, "fraud score strictness level (0-3)")
	commandLookup.Flags().StringVar(&asnDatabase, "asn-db", "", "MaxMind ASN database to cross-check decoded ASN values")
	mainCommand.AddCommand(commandLookup)
}

func newLogger() (log.Factory, error) {
	return log.New(log.Options{
		Context:       context.Background(),
		Options:       option.LogOptions{Level: logLevel},
		DefaultWriter: os.Stderr,
		BaseTime:      time.Now(),
	})
}

func lookup(rawAddress string) error {
	addr, err := netip.ParseAddr(rawAddress)
	if err != nil {
		return E.Cause(err, "parse address")
	}
	logFactory, err := newLogger()
	if err != nil {
		return err
	}
	defer logFactory.Close()
	logger := logFactory.NewLogger("lookup")

	reader, err := ipqsdb.Open(databasePath)
	if err != nil {
		return E.Cause(err, "open database")
	}
	defer reader.Close()

	record, err := reader.Fetch(addr)
	if err != nil {
		return err
	}

	switch outputFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(record)
		if err != nil {
			return err
		}
	case "text":
		if isProxy, loaded := record.IsProxy(); loaded && isProxy {
			logger.Warn(addr, " is a proxy")
		}
		if score, loaded := record.FraudScore(ipqsdb.Strictness(strictness)); loaded {
			logger.Info("fraud score at strictness ", strictness, ": ", score)
		}
		os.Stdout.WriteString(record.String() + "\n")
	default:
		return E.New("unknown output format: ", outputFormat)
	}

	if asnDatabase != "" {
		asnReader, err := asn.Open(asnDatabase)
		if err != nil {
			return E.Cause(err, "open ASN database")
		}
		defer asnReader.Close()
		if flatFileASN, loaded := record.ASN(); loaded {
			agrees, reference := asnReader.Verify(addr, flatFileASN)
			if agrees {
				logger.Info("ASN ", flatFileASN, " agrees with the reference database")
			} else {
				logger.Warn("ASN mismatch: flat file has ", flatFileASN, ", reference has ", reference)
			}
		}
	}
	return nil
}
