// Package exchange implements the recycle-exchange dialog workflow:
// role registration, pickup requests, and verified exchanges. It is
// plain CRUD against the same graph the ingestion pipeline writes to,
// with dialog state held externally.
package exchange

import (
	"context"
	"errors"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"go.uber.org/zap"

	"storygraph/internal/graph"
)

type Role string

const (
	RoleCreator   Role = "WASTE_CREATOR"
	RoleCollector Role = "WASTE_COLLECTOR"
	RoleCompany   Role = "RECYCLING_COMPANY"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address"`
}

type User struct {
	ID         string   `json:"id"`
	TelegramID int64    `json:"telegram_id"`
	Name       string   `json:"name"`
	Contact    string   `json:"contact"`
	Location   Location `json:"location"`
	Role       Role     `json:"role"`
	Online     bool     `json:"online"`
}

type PickupRequest struct {
	ID                  string `json:"id"`
	CreatorID           string `json:"creator_id"`
	Status              string `json:"status"`
	AssignedCollectorID string `json:"assigned_collector_id,omitempty"`
}

type Exchange struct {
	ID                string  `json:"id"`
	RequestID         string  `json:"request_id"`
	CreatorID         string  `json:"creator_id"`
	CollectorID       string  `json:"collector_id"`
	CompanyID         string  `json:"company_id,omitempty"`
	Status            string  `json:"status"`
	VerificationPhoto string  `json:"verification_photo,omitempty"`
	Weight            float64 `json:"weight,omitempty"`
}

var errNoRecord = errors.New("no record returned")

type Service struct {
	store *graph.Store
	log   *zap.SugaredLogger
}

func NewService(store *graph.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: store, log: log}
}

// RegisterUser upserts a user by Telegram id. Unlike ingestion
// entities, users are mutable: re-registration overwrites the profile.
func (s *Service) RegisterUser(ctx context.Context, telegramID int64, name, contact string, loc Location, role Role) (User, error) {
	session := s.store.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MERGE (u:User {telegramId: $telegramId})
ON CREATE SET
  u.id = randomUUID(),
  u.createdAt = datetime()
SET u.name = $name,
    u.contact = $contact,
    u.latitude = $latitude,
    u.longitude = $longitude,
    u.address = $address,
    u.role = $role,
    u.online = true,
    u.updatedAt = datetime()
RETURN u`, map[string]any{
			"telegramId": telegramID,
			"name":       name,
			"contact":    contact,
			"latitude":   loc.Latitude,
			"longitude":  loc.Longitude,
			"address":    loc.Address,
			"role":       string(role),
		})
		if err != nil {
			return nil, err
		}
		return singleUser(ctx, result)
	})
	if err != nil {
		return User{}, err
	}

	u := out.(User)
	s.log.Infow("registered user", "telegram_id", telegramID, "role", role)
	return u, nil
}

func (s *Service) UserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	session := s.store.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (u:User {telegramId: $telegramId}) RETURN u`,
			map[string]any{"telegramId": telegramID})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return (*User)(nil), result.Err()
		}
		u, err := userFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*User), nil
}

func (s *Service) UserByID(ctx context.Context, id string) (*User, error) {
	session := s.store.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (u:User {id: $id}) RETURN u`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return (*User)(nil), result.Err()
		}
		u, err := userFromRecord(result.Record())
		if err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*User), nil
}

func (s *Service) ExchangeByID(ctx context.Context, id string) (*Exchange, error) {
	session := s.store.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (x:Exchange {id: $id}) RETURN x`,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return (*Exchange)(nil), result.Err()
		}
		node, err := nodeValue(result.Record(), "x")
		if err != nil {
			return nil, err
		}
		x := Exchange{
			ID:                stringProp(node, "id"),
			RequestID:         stringProp(node, "requestId"),
			CreatorID:         stringProp(node, "creatorId"),
			CollectorID:       stringProp(node, "collectorId"),
			CompanyID:         stringProp(node, "companyId"),
			Status:            stringProp(node, "status"),
			VerificationPhoto: stringProp(node, "verificationPhoto"),
			Weight:            floatProp(node, "weight"),
		}
		return &x, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*Exchange), nil
}

func (s *Service) SetOnline(ctx context.Context, telegramID int64, online bool) error {
	session := s.store.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `MATCH (u:User {telegramId: $telegramId})
SET u.online = $online, u.updatedAt = datetime()`, map[string]any{
			"telegramId": telegramID,
			"online":     online,
		})
	})
	return err
}

func (s *Service) OnlineCollectors(ctx context.Context) ([]User, error) {
	session := s.store.Session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (u:User)
WHERE u.role = $role AND u.online = true
RETURN u`, map[string]any{"role": string(RoleCollector)})
		if err != nil {
			return nil, err
		}

		var users []User
		for result.Next(ctx) {
			u, err := userFromRecord(result.Record())
			if err != nil {
				return nil, err
			}
			users = append(users, u)
		}
		return users, result.Err()
	})
	if err != nil {
		return nil, err
	}
	return out.([]User), nil
}

// CreatePickupRequest opens a pending request that expires after five
// hours.
func (s *Service) CreatePickupRequest(ctx context.Context, creatorID string) (PickupRequest, error) {
	session := s.store.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (creator:User {id: $creatorId})
CREATE (r:PickupRequest {
  id: randomUUID(),
  creatorId: $creatorId,
  status: 'PENDING',
  createdAt: datetime(),
  expiresAt: datetime() + duration({hours: 5})
})
CREATE (creator)-[:CREATED]->(r)
RETURN r`, map[string]any{"creatorId": creatorID})
		if err != nil {
			return nil, err
		}
		return singleRequest(ctx, result)
	})
	if err != nil {
		return PickupRequest{}, err
	}
	return out.(PickupRequest), nil
}

func (s *Service) AssignCollector(ctx context.Context, requestID, collectorID string) (PickupRequest, error) {
	session := s.store.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (r:PickupRequest {id: $requestId})
MATCH (collector:User {id: $collectorId})
SET r.status = 'ACCEPTED',
    r.assignedCollectorId = $collectorId
CREATE (collector)-[:ASSIGNED_TO]->(r)
RETURN r`, map[string]any{
			"requestId":   requestID,
			"collectorId": collectorID,
		})
		if err != nil {
			return nil, err
		}
		return singleRequest(ctx, result)
	})
	if err != nil {
		return PickupRequest{}, err
	}
	return out.(PickupRequest), nil
}

func (s *Service) CreateExchange(ctx context.Context, requestID, creatorID, collectorID string) (Exchange, error) {
	session := s.store.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (r:PickupRequest {id: $requestId})
MATCH (creator:User {id: $creatorId})
MATCH (collector:User {id: $collectorId})
CREATE (x:Exchange {
  id: randomUUID(),
  requestId: $requestId,
  creatorId: $creatorId,
  collectorId: $collectorId,
  status: 'CREATOR_TO_COLLECTOR',
  createdAt: datetime()
})
CREATE (r)-[:HAS_EXCHANGE]->(x)
CREATE (creator)-[:PARTICIPATED_IN]->(x)
CREATE (collector)-[:PARTICIPATED_IN]->(x)
RETURN x`, map[string]any{
			"requestId":   requestID,
			"creatorId":   creatorID,
			"collectorId": collectorID,
		})
		if err != nil {
			return nil, err
		}
		return singleExchange(ctx, result)
	})
	if err != nil {
		return Exchange{}, err
	}
	return out.(Exchange), nil
}

func (s *Service) AttachVerificationPhoto(ctx context.Context, exchangeID, photoFileID string) (Exchange, error) {
	session := s.store.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (x:Exchange {id: $exchangeId})
SET x.verificationPhoto = $photo
RETURN x`, map[string]any{
			"exchangeId": exchangeID,
			"photo":      photoFileID,
		})
		if err != nil {
			return nil, err
		}
		return singleExchange(ctx, result)
	})
	if err != nil {
		return Exchange{}, err
	}
	return out.(Exchange), nil
}

func (s *Service) CompleteExchange(ctx context.Context, exchangeID, companyID string, weight float64) (Exchange, error) {
	session := s.store.Session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `MATCH (x:Exchange {id: $exchangeId})
MATCH (company:User {id: $companyId})
SET x.status = 'COMPLETED',
    x.companyId = $companyId,
    x.weight = $weight,
    x.completedAt = datetime()
CREATE (company)-[:PARTICIPATED_IN]->(x)
RETURN x`, map[string]any{
			"exchangeId": exchangeID,
			"companyId":  companyID,
			"weight":     weight,
		})
		if err != nil {
			return nil, err
		}
		return singleExchange(ctx, result)
	})
	if err != nil {
		return Exchange{}, err
	}

	x := out.(Exchange)
	s.log.Infow("exchange completed", "exchange_id", x.ID, "weight", weight)
	return x, nil
}

func singleUser(ctx context.Context, result neo4j.ResultWithContext) (User, error) {
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return User{}, err
		}
		return User{}, errNoRecord
	}
	return userFromRecord(result.Record())
}

func userFromRecord(record *db.Record) (User, error) {
	node, err := nodeValue(record, "u")
	if err != nil {
		return User{}, err
	}
	return User{
		ID:         stringProp(node, "id"),
		TelegramID: int64Prop(node, "telegramId"),
		Name:       stringProp(node, "name"),
		Contact:    stringProp(node, "contact"),
		Location: Location{
			Latitude:  floatProp(node, "latitude"),
			Longitude: floatProp(node, "longitude"),
			Address:   stringProp(node, "address"),
		},
		Role:   Role(stringProp(node, "role")),
		Online: boolProp(node, "online"),
	}, nil
}

func singleRequest(ctx context.Context, result neo4j.ResultWithContext) (PickupRequest, error) {
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return PickupRequest{}, err
		}
		return PickupRequest{}, errNoRecord
	}
	node, err := nodeValue(result.Record(), "r")
	if err != nil {
		return PickupRequest{}, err
	}
	return PickupRequest{
		ID:                  stringProp(node, "id"),
		CreatorID:           stringProp(node, "creatorId"),
		Status:              stringProp(node, "status"),
		AssignedCollectorID: stringProp(node, "assignedCollectorId"),
	}, nil
}

func singleExchange(ctx context.Context, result neo4j.ResultWithContext) (Exchange, error) {
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return Exchange{}, err
		}
		return Exchange{}, errNoRecord
	}
	node, err := nodeValue(result.Record(), "x")
	if err != nil {
		return Exchange{}, err
	}
	return Exchange{
		ID:                stringProp(node, "id"),
		RequestID:         stringProp(node, "requestId"),
		CreatorID:         stringProp(node, "creatorId"),
		CollectorID:       stringProp(node, "collectorId"),
		CompanyID:         stringProp(node, "companyId"),
		Status:            stringProp(node, "status"),
		VerificationPhoto: stringProp(node, "verificationPhoto"),
		Weight:            floatProp(node, "weight"),
	}, nil
}

func nodeValue(record *db.Record, key string) (neo4j.Node, error) {
	v, ok := record.Get(key)
	if !ok {
		return neo4j.Node{}, errNoRecord
	}
	node, ok := v.(neo4j.Node)
	if !ok {
		return neo4j.Node{}, errNoRecord
	}
	return node, nil
}

func stringProp(n neo4j.Node, key string) string {
	if v, ok := n.Props[key].(string); ok {
		return v
	}
	return ""
}

func int64Prop(n neo4j.Node, key string) int64 {
	if v, ok := n.Props[key].(int64); ok {
		return v
	}
	return 0
}

func floatProp(n neo4j.Node, key string) float64 {
	switch v := n.Props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func boolProp(n neo4j.Node, key string) bool {
	if v, ok := n.Props[key].(bool); ok {
		return v
	}
	return false
}
