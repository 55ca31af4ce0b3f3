package ctrl

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/roffe/gotcc"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Server answers control messages by driving a client. One server per
// driver; any number of concurrent sessions.
type Server struct {
	log zerolog.Logger
	cl  *gotcc.Client
	ln  net.Listener
}

func NewServer(cl *gotcc.Client, log zerolog.Logger) *Server {
	return &Server{
		log: log,
		cl:  cl,
	}
}

// Listen binds the server address. Call before Serve; Addr reports the
// bound address, which matters when the port was 0.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info().Str("addr", ln.Addr().String()).Msg("control server listening")
	return nil
}

func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts sessions until ctx is cancelled or the listener dies.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("control server is not listening")
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return s.ln.Close()
	})
	g.Go(func() error {
		for {
			conn, err := s.ln.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			go s.handle(ctx, conn)
		}
	})
	return g.Wait()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	log := s.log.With().Str("remote", conn.RemoteAddr().String()).Logger()
	log.Info().Msg("control session open")
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	buf := make([]byte, MessageLength)
	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.Warn().Err(err).Msg("control session read")
			}
			log.Info().Msg("control session closed")
			return
		}
		var req Message
		if err := req.Unmarshal(buf); err != nil {
			log.Warn().Err(err).Msg("control session message")
			return
		}
		resp := s.dispatch(&req)
		log.Debug().Stringer("type", req.Type).Uint16("arg", req.Arg).Stringer("status", resp.Status).Msg("control request")
		if _, err := conn.Write(resp.Marshal()); err != nil {
			log.Warn().Err(err).Msg("control session write")
			return
		}
	}
}

// dispatch maps one request onto the driver. Failures never close the
// session; they come back as StatusFailed.
func (s *Server) dispatch(req *Message) Message {
	resp := Message{Type: req.Type, Arg: req.Arg}
	switch req.Type {
	case TypeCheck:
		if s.cl.State() != gotcc.StateOpen {
			resp.Status = StatusFailed
		}
	case TypeCommand:
		if err := s.cl.ExecuteCommand(gotcc.Command(req.Arg), float64(req.Float())); err != nil {
			s.log.Warn().Err(err).Uint16("command", req.Arg).Msg("remote command failed")
			resp.Status = StatusFailed
		} else {
			resp.Value = req.Value
		}
	case TypeGetParameter:
		val, stale, err := s.cl.Param(gotcc.Parameter(req.Arg))
		if err != nil {
			s.log.Warn().Err(err).Uint16("parameter", req.Arg).Msg("remote query failed")
			resp.Status = StatusFailed
			break
		}
		resp.SetFloat(float32(val.Float64()))
		if stale {
			resp.Status = StatusStale
		}
	case TypeGetTimeout:
		d, err := s.cl.Timeout(gotcc.TimeoutClass(req.Arg))
		if err != nil {
			resp.Status = StatusFailed
			break
		}
		resp.Value = uint32(d.Milliseconds())
	case TypeSetTimeout:
		d := time.Duration(req.Value) * time.Millisecond
		if err := s.cl.SetTimeout(gotcc.TimeoutClass(req.Arg), d); err != nil {
			s.log.Warn().Err(err).Uint16("class", req.Arg).Msg("remote timeout change failed")
			resp.Status = StatusFailed
		}
	default:
		resp.Type = TypeUndefined
		resp.Status = StatusFailed
	}
	return resp
}
