// Package smtptest runs a minimal in-process SMTP server for transport tests.
package smtptest

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"math/big"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Options configures server behaviour.
type Options struct {
	StartTLS bool
	// Username/Password are the only accepted AUTH PLAIN credentials.
	// Empty Username accepts anything.
	Username string
	Password string
	// RejectRcpt lists addresses answered with 550.
	RejectRcpt []string
}

// Delivery is one accepted DATA transaction.
type Delivery struct {
	From string
	To   []string
	Data string
	TLS  bool
	Auth bool
}

// Server is a fake SMTP server listening on 127.0.0.1.
type Server struct {
	listener net.Listener
	opts     Options
	cert     tls.Certificate

	mu          sync.Mutex
	deliveries  []Delivery
	connections int
	commands    []string
}

// Start launches a server and registers its shutdown with t.Cleanup.
func Start(t *testing.T, opts Options) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &Server{listener: listener, opts: opts}
	if opts.StartTLS {
		cert, err := generateCert()
		if err != nil {
			t.Fatalf("failed to generate cert: %v", err)
		}
		s.cert = cert
	}

	go s.serve()
	t.Cleanup(func() { _ = listener.Close() })

	return s
}

// Host returns the listening IP.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// Deliveries returns accepted messages.
func (s *Server) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Delivery(nil), s.deliveries...)
}

// Connections returns how many clients connected.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Commands returns the verbs received, in order, across all sessions.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *Server) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.connections++
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *Server) record(verb string) {
	s.mu.Lock()
	s.commands = append(s.commands, verb)
	s.mu.Unlock()
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)
	reply := func(lines ...string) {
		for _, l := range lines {
			writer.WriteString(l + "\r\n")
		}
		writer.Flush()
	}

	var (
		tlsOn  bool
		authed bool
		cur    Delivery
	)

	reply("220 localhost ESMTP smtptest")

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		upper := strings.ToUpper(line)
		verb := strings.SplitN(upper, " ", 2)[0]
		if verb == "MAIL" || verb == "RCPT" {
			verb = strings.SplitN(upper, ":", 2)[0]
		}
		s.record(verb)

		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			lines := []string{"250-localhost"}
			if s.opts.StartTLS && !tlsOn {
				lines = append(lines, "250-STARTTLS")
			}
			lines = append(lines, "250-AUTH PLAIN", "250 8BITMIME")
			reply(lines...)
		case upper == "STARTTLS":
			if !s.opts.StartTLS || tlsOn {
				reply("502 not supported")
				continue
			}
			reply("220 ready to start TLS")
			tlsConn := tls.Server(conn, &tls.Config{
				Certificates: []tls.Certificate{s.cert},
				MinVersion:   tls.VersionTLS12,
			})
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			conn = tlsConn
			reader = bufio.NewReader(tlsConn)
			writer = bufio.NewWriter(tlsConn)
			tlsOn = true
		case strings.HasPrefix(upper, "AUTH PLAIN"):
			if s.checkPlain(strings.TrimSpace(line[len("AUTH PLAIN"):])) {
				authed = true
				reply("235 2.7.0 authentication successful")
			} else {
				reply("535 5.7.8 authentication credentials invalid")
			}
		case strings.HasPrefix(upper, "MAIL FROM:"):
			cur = Delivery{From: extractAddr(line), TLS: tlsOn, Auth: authed}
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			addr := extractAddr(line)
			if s.rejected(addr) {
				reply("550 5.1.1 mailbox unavailable")
				continue
			}
			cur.To = append(cur.To, addr)
			reply("250 OK")
		case upper == "DATA":
			reply("354 end data with <CR><LF>.<CR><LF>")
			var data strings.Builder
			for {
				l, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" || l == ".\n" {
					break
				}
				if strings.HasPrefix(l, "..") {
					l = l[1:]
				}
				data.WriteString(l)
			}
			cur.Data = data.String()
			s.mu.Lock()
			s.deliveries = append(s.deliveries, cur)
			s.mu.Unlock()
			reply("250 OK queued")
		case upper == "RSET":
			cur = Delivery{}
			reply("250 OK")
		case upper == "NOOP":
			reply("250 OK")
		case upper == "QUIT":
			reply("221 bye")
			return
		default:
			reply("500 syntax error")
		}
	}
}

func (s *Server) checkPlain(encoded string) bool {
	if s.opts.Username == "" {
		return true
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	parts := strings.Split(string(raw), "\x00")
	return len(parts) == 3 && parts[1] == s.opts.Username && parts[2] == s.opts.Password
}

func (s *Server) rejected(addr string) bool {
	for _, r := range s.opts.RejectRcpt {
		if strings.EqualFold(r, addr) {
			return true
		}
	}
	return false
}

func extractAddr(line string) string {
	start := strings.Index(line, "<")
	end := strings.LastIndex(line, ">")
	if start < 0 || end <= start {
		return ""
	}
	return line[start+1 : end]
}

func generateCert() (tls.Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Organization: []string{"smtptest"}, CommonName: "localhost"},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.X509KeyPair(
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}),
		pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}),
	)
}
