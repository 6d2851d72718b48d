package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/metal-stack/dhcprobe/message"
	"github.com/metal-stack/dhcprobe/pcap"
	"github.com/metal-stack/dhcprobe/probe"
)

// session collects everything a command needs to run transactions:
// resolved endpoints, policy, logger and the optional capture.
type session struct {
	log    *zap.SugaredLogger
	target *net.UDPAddr
	bind   *net.UDPAddr
	iface  string
	policy probe.RetryPolicy

	capture     *pcap.Capture
	captureFile *os.File
}

var metricsOnce sync.Once

// newSession resolves the target argument and the persistent flags.
// wantFamily guards against sending a v4 kind to a v6 target and vice
// versa.
func newSession(targetArg string, wantFamily message.Family) (*session, error) {
	ip := net.ParseIP(targetArg)
	if ip == nil {
		return nil, fmt.Errorf("invalid target address %q", targetArg)
	}
	family := message.FamilyOf(ip)
	if family != wantFamily {
		return nil, fmt.Errorf("target %s is %s but this command sends %s", ip, family, wantFamily)
	}

	log, err := probe.NewLogger(viper.GetString("output"))
	if err != nil {
		return nil, err
	}

	port := viper.GetInt("port")
	defaultPort := port == 0
	if defaultPort {
		if family == message.FamilyV6 {
			port = 546
		} else {
			port = 67
		}
	}
	target := &net.UDPAddr{IP: ip, Port: port}

	bind, err := resolveBind(viper.GetString("bind"), family, defaultPort)
	if err != nil {
		return nil, err
	}

	s := &session{
		log:    log,
		target: target,
		bind:   bind,
		iface:  viper.GetString("interface"),
		policy: probe.RetryPolicy{
			Timeout:  time.Duration(viper.GetInt("timeout")) * time.Second,
			Attempts: viper.GetInt("attempts"),
			NoRetry:  viper.GetBool("no-retry"),
		},
	}

	if f := viper.GetString("pcap"); f != "" {
		file, err := os.Create(f)
		if err != nil {
			return nil, fmt.Errorf("creating pcap file: %w", err)
		}
		s.captureFile = file
		s.capture = pcap.NewCapture(&pcap.Writer{Writer: file})
	}

	if addr := viper.GetString("metrics-addr"); addr != "" {
		metricsOnce.Do(func() {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				if err := http.ListenAndServe(addr, mux); err != nil {
					log.Errorw("metrics listener failed", "addr", addr, "err", err)
				}
			}()
		})
	}
	return s, nil
}

// resolveBind picks the local endpoint: an explicit --bind wins, the
// well-known client port is used with default target ports, an
// ephemeral port otherwise.
func resolveBind(flag string, family message.Family, defaultPort bool) (*net.UDPAddr, error) {
	if flag != "" {
		addr, err := net.ResolveUDPAddr("udp", flag)
		if err != nil {
			return nil, fmt.Errorf("invalid bind address %q: %w", flag, err)
		}
		return addr, nil
	}
	port := 0
	if family == message.FamilyV6 {
		if defaultPort {
			port = 547
		}
		return &net.UDPAddr{IP: net.IPv6unspecified, Port: port}, nil
	}
	if defaultPort {
		port = 68
	}
	return &net.UDPAddr{IP: net.IPv4zero, Port: port}, nil
}

func (s *session) close() {
	if s.captureFile != nil {
		if err := s.capture.Err(); err != nil {
			s.log.Errorw("pcap capture incomplete", "err", err)
		}
		if err := s.captureFile.Close(); err != nil {
			s.log.Errorw("closing pcap file", "err", err)
		}
	}
	_ = s.log.Sync()
}

func (s *session) openConn() (*probe.Conn, error) {
	conn, err := probe.NewConn(probe.ConnConfig{
		Target:    s.target,
		Bind:      s.bind,
		Interface: s.iface,
	})
	if err != nil {
		return nil, err
	}
	if s.capture != nil {
		conn.SetCapture(s.capture)
	}
	return conn, nil
}

// runOne executes a single transaction and reports the outcome.
func (s *session) runOne(ctx context.Context, cfg *message.Config) error {
	s.log.Infow("sending",
		"kind", cfg.Kind.String(),
		"xid", cfg.Xid,
		"target", s.target.String(),
		"bind", s.bind.String(),
	)
	conn, err := s.openConn()
	if err != nil {
		return err
	}
	runner := probe.NewRunner(s.log, conn, s.policy)
	reply, err := runner.Run(ctx, cfg)
	if err != nil {
		return err
	}
	s.log.Infow("reply",
		"kind", reply.Msg.Kind(),
		"from", reply.Source.String(),
	)
	s.log.Info(reply.Msg.Summary())
	return nil
}
