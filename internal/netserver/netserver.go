// Package netserver is the TCP front-end for the wire protocol: a
// goroutine-per-connection accept loop over the shared storage engine, the
// idiomatic-Go analogue of a kqueue-driven event loop.
package netserver

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ridgedb/ridgedb/internal/logging"
	"github.com/ridgedb/ridgedb/internal/protocol"
	"github.com/ridgedb/ridgedb/internal/storage"
)

// Server accepts connections and serves SET/GET/DEL requests against a
// shared *storage.LSM.
type Server struct {
	listener net.Listener
	engine   *storage.LSM
	logger   *logrus.Logger

	wg sync.WaitGroup
}

// Listen opens a TCP listener on addr.
func Listen(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// New wraps an already-open listener.
func New(listener net.Listener, engine *storage.LSM, logger *logrus.Logger) *Server {
	return &Server{listener: listener, engine: engine, logger: logger}
}

// Serve runs the accept loop until ctx is canceled or the listener errors.
// Each accepted connection is handled on its own goroutine; Serve returns
// once the listener is closed and every in-flight connection has finished.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.wg.Wait()
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	connID := uuid.NewString()
	log := logging.WithComponent(s.logger, "netserver").WithFields(logrus.Fields{"conn_id": connID, "remote_addr": conn.RemoteAddr().String()})
	log.Debug("connection accepted")

	dec := protocol.NewDecoder(conn)
	enc := protocol.NewEncoder(conn)

	for {
		args, err := dec.Decode()
		if err != nil {
			log.WithError(err).Debug("connection closed")
			return
		}
		if err := s.dispatch(enc, args); err != nil {
			log.WithError(err).Warn("failed writing response")
			return
		}
	}
}

func (s *Server) dispatch(enc *protocol.Encoder, args [][]byte) error {
	if len(args) == 0 {
		return enc.WriteError("empty command")
	}

	cmd := string(args[0])
	switch cmd {
	case "SET", "set":
		if len(args) != 3 {
			return enc.WriteError("wrong number of arguments for SET")
		}
		if err := s.engine.Put(args[1], args[2]); err != nil {
			return enc.WriteError(err.Error())
		}
		return enc.WriteSimpleString("OK")

	case "GET", "get":
		if len(args) != 2 {
			return enc.WriteError("wrong number of arguments for GET")
		}
		status, value := s.engine.Get(args[1])
		switch status {
		case storage.Found:
			return enc.WriteBulkString(value)
		case storage.Deleted:
			return enc.WriteBulkString(nil)
		default:
			return enc.WriteBulkString(nil)
		}

	case "DEL", "del":
		if len(args) != 2 {
			return enc.WriteError("wrong number of arguments for DEL")
		}
		status, _ := s.engine.Get(args[1])
		if err := s.engine.Remove(args[1]); err != nil {
			return enc.WriteError(err.Error())
		}
		if status == storage.Found {
			return enc.WriteInteger(1)
		}
		return enc.WriteInteger(0)

	default:
		return enc.WriteError("unknown command: " + cmd)
	}
}
