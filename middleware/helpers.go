package middleware

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/Dosada05/esports-booking/models"
	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const userContextKey contextKey = "user"

// Имена JWT claims
const (
	jwtClaimUserID = "user_id"
	jwtClaimEmail  = "email"
	jwtClaimRole   = "role"
)

var ErrNoActor = errors.New("user not found in context")

// WithActor кладет актора в контекст запроса.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, userContextKey, actor)
}

func GetActorFromContext(ctx context.Context) (models.Actor, error) {
	actor, ok := ctx.Value(userContextKey).(models.Actor)
	if !ok {
		return models.Actor{}, ErrNoActor
	}
	return actor, nil
}

func GetUserIDFromContext(ctx context.Context) (int, error) {
	actor, err := GetActorFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return actor.UserID, nil
}

// actorFromClaims собирает актора из claims токена.
// Роль из токена только подсказка: админские маршруты перепроверяют ее через AccessService.
func actorFromClaims(claims jwt.MapClaims) (models.Actor, error) {
	userIDClaim, ok := claims[jwtClaimUserID]
	if !ok {
		return models.Actor{}, fmt.Errorf("missing '%s' claim in token", jwtClaimUserID)
	}

	var userID int
	switch v := userIDClaim.(type) {
	case float64:
		if v != float64(int(v)) {
			return models.Actor{}, fmt.Errorf("'%s' claim is not an integer: %f", jwtClaimUserID, v)
		}
		userID = int(v)
	case string:
		id, err := strconv.Atoi(v)
		if err != nil {
			return models.Actor{}, fmt.Errorf("invalid '%s' claim: %q", jwtClaimUserID, v)
		}
		userID = id
	default:
		return models.Actor{}, fmt.Errorf("invalid type for '%s' claim: expected number or string, got %T", jwtClaimUserID, userIDClaim)
	}
	if userID <= 0 {
		return models.Actor{}, fmt.Errorf("invalid user ID value in '%s' claim: %d", jwtClaimUserID, userID)
	}

	email, _ := claims[jwtClaimEmail].(string)
	if email == "" {
		return models.Actor{}, fmt.Errorf("missing '%s' claim in token", jwtClaimEmail)
	}

	role := models.RolePlayer
	if r, ok := claims[jwtClaimRole].(string); ok && r != "" {
		role = models.Role(r)
	}

	return models.Actor{UserID: userID, Email: email, Role: role}, nil
}
