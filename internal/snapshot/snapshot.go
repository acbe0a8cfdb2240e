package snapshot

import (
	"context"

	"go.uber.org/zap"

	"github.com/feral-file/ff-dao-mirror/internal/domain"
	"github.com/feral-file/ff-dao-mirror/internal/logger"
	"github.com/feral-file/ff-dao-mirror/internal/providers/ethereum"
)

// Snapshotter reads the declared parameters of a contract
//
//go:generate mockgen -source=snapshot.go -destination=../mocks/snapshotter.go -package=mocks -mock_names=Snapshotter=MockSnapshotter
type Snapshotter interface {
	// Snapshot calls every declared parameter that the contract exposes as a
	// zero-argument callable. It never fails as a whole: parameters that are not
	// callable or whose call fails are absent from the result.
	Snapshot(ctx context.Context, descriptor domain.ContractDescriptor) domain.State
}

type snapshotter struct {
	client ethereum.EthereumClient
}

// NewSnapshotter creates a snapshotter reading through client
func NewSnapshotter(client ethereum.EthereumClient) Snapshotter {
	return &snapshotter{client: client}
}

func (s *snapshotter) Snapshot(ctx context.Context, descriptor domain.ContractDescriptor) domain.State {
	state := domain.State{}
	if len(descriptor.Parameters) == 0 {
		return state
	}

	contractABI, err := ethereum.ParseABI(descriptor.ABI)
	if err != nil {
		logger.ErrorCtx(ctx, err, zap.String("contract", descriptor.PublicAddress))
		return state
	}

	for _, param := range descriptor.Parameters {
		if ctx.Err() != nil {
			break
		}

		method, ok := contractABI.Methods[param.Name]
		if !ok || len(method.Inputs) > 0 {
			logger.DebugCtx(ctx, "Parameter has no zero-argument callable",
				zap.String("contract", descriptor.PublicAddress),
				zap.String("parameter", param.Name))
			continue
		}

		outputs, err := s.client.CallConstant(ctx, descriptor.PublicAddress, contractABI, param.Name)
		if err != nil {
			logger.WarnCtx(ctx, "Failed to read parameter",
				zap.String("contract", descriptor.PublicAddress),
				zap.String("parameter", param.Name),
				zap.Error(err))
			continue
		}

		switch len(outputs) {
		case 0:
		case 1:
			state[param.Name] = outputs[0]
		default:
			state[param.Name] = outputs
		}
	}

	return state
}
