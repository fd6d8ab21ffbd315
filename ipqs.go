package ipqs

import (
	"context"
	"net/netip"
	"os"
	"time"

	"github.com/sagernet/sing-ipqs/adapter"
	"github.com/sagernet/sing-ipqs/common/asn"
	"github.com/sagernet/sing-ipqs/common/ipqsdb"
	"github.com/sagernet/sing-ipqs/log"
	"github.com/sagernet/sing-ipqs/option"
	E "github.com/sagernet/sing/common/exceptions"
)

var (
	_ adapter.Service      = (*Service)(nil)
	_ adapter.RecordSource = (*ipqsdb.Reader)(nil)
	_ adapter.ASNReader    = (*asn.Reader)(nil)
)

// Service ties together the configured database readers and the log
// factory. Each reputation file holds exactly one address family; the
// service opens one reader per configured family and dispatches lookups by
// the family of the queried address.
type Service struct {
	ctx        context.Context
	options    option.Options
	logFactory log.Factory
	logger     log.ContextLogger
	ipv4       *ipqsdb.Reader
	ipv6       *ipqsdb.Reader
	asn        *asn.Reader
}

type Options struct {
	Context context.Context
	Options option.Options
}

// New creates a service from options. Databases are opened at Start.
func New(options Options) (*Service, error) {
	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var logOptions option.LogOptions
	if options.Options.Log != nil {
		logOptions = *options.Options.Log
	}
	logFactory, err := log.New(log.Options{
		Context:       ctx,
		Options:       logOptions,
		DefaultWriter: os.Stderr,
		BaseTime:      time.Now(),
	})
	if err != nil {
		return nil, E.Cause(err, "create log factory")
	}
	if options.Options.IPv4Database == nil && options.Options.IPv6Database == nil {
		return nil, E.New("no database configured")
	}
	return &Service{
		ctx:        ctx,
		options:    options.Options,
		logFactory: logFactory,
		logger:     logFactory.Logger(),
	}, nil
}

// Start opens the configured databases.
func (s *Service) Start() error {
	err := s.logFactory.Start()
	if err != nil {
		return E.Cause(err, "start logger")
	}
	if databaseOptions := s.options.IPv4Database; databaseOptions != nil {
		s.ipv4, err = openReader(databaseOptions)
		if err != nil {
			return E.Cause(err, "open IPv4 database")
		}
		if s.ipv4.IsIPv6() {
			s.ipv4.Close()
			s.ipv4 = nil
			return E.New("configured IPv4 database holds IPv6 data: ", databaseOptions.Path)
		}
		s.logger.Info("loaded IPv4 database ", databaseOptions.Path, " with ", len(s.ipv4.Columns()), " columns")
	}
	if databaseOptions := s.options.IPv6Database; databaseOptions != nil {
		s.ipv6, err = openReader(databaseOptions)
		if err != nil {
			return E.Cause(err, "open IPv6 database")
		}
		if !s.ipv6.IsIPv6() {
			s.ipv6.Close()
			s.ipv6 = nil
			return E.New("configured IPv6 database holds IPv4 data: ", databaseOptions.Path)
		}
		s.logger.Info("loaded IPv6 database ", databaseOptions.Path, " with ", len(s.ipv6.Columns()), " columns")
	}
	if asnOptions := s.options.ASNDatabase; asnOptions != nil {
		s.asn, err = asn.Open(asnOptions.Path)
		if err != nil {
			return E.Cause(err, "open ASN database")
		}
		s.logger.Info("loaded ASN database ", asnOptions.Path)
	}
	return nil
}

func openReader(databaseOptions *option.DatabaseOptions) (*ipqsdb.Reader, error) {
	switch databaseOptions.Mode {
	case option.DatabaseModeMapped, "":
		return ipqsdb.Open(databaseOptions.Path)
	case option.DatabaseModeMemory:
		data, err := os.ReadFile(databaseOptions.Path)
		if err != nil {
			return nil, err
		}
		return ipqsdb.FromBytes(data)
	case option.DatabaseModeFile:
		return ipqsdb.OpenFile(databaseOptions.Path)
	default:
		return nil, E.New("unknown database mode: ", databaseOptions.Mode)
	}
}

// Lookup fetches the record for addr from the reader matching its family.
func (s *Service) Lookup(addr netip.Addr) (*ipqsdb.Record, error) {
	var reader *ipqsdb.Reader
	if addr.Is4() {
		reader = s.ipv4
	} else {
		reader = s.ipv6
	}
	if reader == nil {
		return nil, E.Cause(ipqsdb.ErrFamilyMismatch, "no database configured for ", addr)
	}
	record, err := reader.Fetch(addr)
	if err != nil {
		s.logger.DebugContext(s.ctx, "lookup ", addr, ": ", err)
		return nil, err
	}
	return record, nil
}

// VerifyASN cross-checks a decoded record's ASN against the configured
// reference database. Without a reference database, or when the record
// carries no ASN, every record verifies.
func (s *Service) VerifyASN(addr netip.Addr, record *ipqsdb.Record) (bool, uint) {
	if s.asn == nil {
		return true, 0
	}
	flatFileASN, loaded := record.ASN()
	if !loaded {
		return true, 0
	}
	agrees, reference := s.asn.Verify(addr, flatFileASN)
	if !agrees {
		s.logger.Warn("ASN mismatch for ", addr, ": flat file has ", flatFileASN, ", reference has ", reference)
	}
	return agrees, reference
}

// Logger exposes the service logger for embedding callers.
func (s *Service) Logger() log.ContextLogger {
	return s.logger
}

// Close releases every open database and the log factory.
func (s *Service) Close() error {
	var errs []error
	if s.ipv4 != nil {
		errs = append(errs, s.ipv4.Close())
	}
	if s.ipv6 != nil {
		errs = append(errs, s.ipv6.Close())
	}
	if s.asn != nil {
		errs = append(errs, s.asn.Close())
	}
	errs = append(errs, s.logFactory.Close())
	return E.Errors(errs...)
}
