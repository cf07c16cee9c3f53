package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Siddharth-AI/Intrest-Miner-sub001/api/middleware"
	pkgerrors "github.com/Siddharth-AI/Intrest-Miner-sub001/pkg/errors"
)

// requestUserID resolves the authenticated caller from the request context.
func requestUserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	return id, nil
}
