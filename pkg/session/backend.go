package session

import (
	"context"
	"fmt"

	"github.com/cuemby/stkgate/pkg/wire"
)

func (s *Session) link() (Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.backend == nil {
		return nil, fmt.Errorf("%w: no Ridian link", ErrNotConnected)
	}
	return s.backend, nil
}

// call sends req over the session's Ridian link. Errors are transport
// failures; a rejected request comes back as a reply with a non-zero
// result.
func (s *Session) call(ctx context.Context, req wire.Message) (wire.Message, error) {
	b, err := s.link()
	if err != nil {
		return nil, err
	}
	return b.SendRecv(ctx, req)
}

func (s *Session) callGen(ctx context.Context, req *wire.GenRequest) (*wire.GenReply, error) {
	rep, err := s.call(ctx, req)
	if err != nil {
		return nil, err
	}
	gen, ok := rep.(*wire.GenReply)
	if !ok {
		return nil, fmt.Errorf("ridian answered %s with %T", req.Type, rep)
	}
	return gen, nil
}

func (s *Session) callQuery(ctx context.Context, req *wire.QuerySensorRequest) (*wire.QuerySensorReply, error) {
	rep, err := s.call(ctx, req)
	if err != nil {
		return nil, err
	}
	q, ok := rep.(*wire.QuerySensorReply)
	if !ok {
		return nil, fmt.Errorf("ridian answered %s with %T", wire.TypeQuerySensor, rep)
	}
	return q, nil
}
