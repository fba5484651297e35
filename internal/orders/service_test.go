package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/microcommerce-backend/pkg/db/models"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/pagination"
)

type stubRepo struct {
	order     *models.Order
	findErr   error
	listRows  []models.Order
	listLimit int
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) Create(ctx context.Context, order *models.Order, items []models.OrderItem) (*models.Order, error) {
	return order, nil
}

func (s *stubRepo) FindForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.order, nil
}

func (s *stubRepo) ListForUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	s.listLimit = limit
	return s.listRows, nil
}

func (s *stubRepo) CountAll(ctx context.Context) (int64, error) { return 0, nil }

func TestGetMapsMissingToNotFound(t *testing.T) {
	svc, err := NewService(&stubRepo{findErr: gorm.ErrRecordNotFound})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_, err = svc.Get(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestGetWrapsDatabaseErrors(t *testing.T) {
	svc, _ := NewService(&stubRepo{findErr: errors.New("connection reset")})
	_, err := svc.Get(context.Background(), uuid.New(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected DEPENDENCY_ERROR, got %v", err)
	}
}

func TestGetRequiresUser(t *testing.T) {
	svc, _ := NewService(&stubRepo{})
	_, err := svc.Get(context.Background(), uuid.Nil, uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeAuthRequired {
		t.Fatalf("expected AUTH_REQUIRED, got %v", err)
	}
}

func TestGetMapsSnapshotFields(t *testing.T) {
	order := &models.Order{
		ID:         uuid.New(),
		Email:      "buyer@example.com",
		Status:     enums.OrderStatusPaid,
		TotalCents: 3000,
		Currency:   enums.CurrencyNGN,
		Items: []models.OrderItem{{
			ID:             uuid.New(),
			ProductID:      uuid.New(),
			ProductName:    "Cap",
			SKU:            "SKU005",
			Quantity:       3,
			UnitPriceCents: 1000,
			LineTotalCents: 3000,
		}},
	}
	svc, _ := NewService(&stubRepo{order: order})
	dto, err := svc.Get(context.Background(), uuid.New(), order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if dto.Status != "paid" || dto.Total.Display != "30.00" {
		t.Fatalf("unexpected order payload %+v", dto)
	}
	if len(dto.Items) != 1 || dto.Items[0].SKU != "SKU005" || dto.Items[0].LineTotal.Display != "30.00" {
		t.Fatalf("unexpected items %+v", dto.Items)
	}
}

func TestListBuffersLimitAndEmitsCursor(t *testing.T) {
	rows := []models.Order{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	repo := &stubRepo{listRows: rows}
	svc, _ := NewService(repo)

	res, err := svc.List(context.Background(), uuid.New(), pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if repo.listLimit != 3 {
		t.Fatalf("expected buffered limit 3, got %d", repo.listLimit)
	}
	if len(res.Orders) != 2 || res.NextCursor == "" {
		t.Fatalf("expected 2 orders and a cursor, got %d %q", len(res.Orders), res.NextCursor)
	}
}

func TestListRejectsBadCursor(t *testing.T) {
	svc, _ := NewService(&stubRepo{})
	_, err := svc.List(context.Background(), uuid.New(), pagination.Params{Cursor: "not-base64!"})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR, got %v", err)
	}
}
