package repository

import (
	"context"

	"secure_chat_service/internal/keys/domain"
	errprocess "secure_chat_service/pkg/err"

	"go.mongodb.org/mongo-driver/mongo"
)

// AuditRepo definition key audit trail repo
type AuditRepo interface {
	Record(ctx context.Context, rec domain.KeyAuditRecord) error
}

type auditRepo struct {
	coll *mongo.Collection
}

// NewAuditRepo create AuditRepo
func NewAuditRepo(db *mongo.Database) AuditRepo {
	return &auditRepo{coll: db.Collection("key_audit")}
}

// Record append an audit record
func (r *auditRepo) Record(ctx context.Context, rec domain.KeyAuditRecord) error {
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return errprocess.Set("insert key audit record failed: " + err.Error())
	}
	return nil
}
