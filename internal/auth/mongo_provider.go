package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/olynsn15/fruitopia-store/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"
)

const usersCollection = "users"

// Revoker remembers token ids that were signed out before they expired.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type userDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash []byte    `bson:"password_hash"`
	Metadata     Metadata  `bson:"metadata"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d userDocument) user() User {
	return User{ID: d.ID, Email: d.Email, Metadata: d.Metadata}
}

// MongoProvider keeps accounts in MongoDB and hands out signed access tokens.
type MongoProvider struct {
	users   *mongo.Collection
	tokens  *TokenIssuer
	revoked Revoker
	cost    int
}

func NewMongoProvider(db *mongo.Database, tokens *TokenIssuer, revoked Revoker) *MongoProvider {
	return &MongoProvider{
		users:   db.Collection(usersCollection),
		tokens:  tokens,
		revoked: revoked,
		cost:    bcrypt.DefaultCost,
	}
}

func (p *MongoProvider) CreateIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := p.users.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}
	return nil
}

func (p *MongoProvider) SignUp(ctx context.Context, email, password string, meta Metadata) (*AuthResult, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	doc := userDocument{
		ID:           uuid.NewString(),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	}
	if _, err := p.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, domain.Remote("sign up", err)
	}

	return p.issue(doc.user())
}

func (p *MongoProvider) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	var doc userDocument
	err := p.users.FindOne(ctx, bson.M{"email": normalizeEmail(email)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, domain.Remote("sign in", err)
	}

	if err := bcrypt.CompareHashAndPassword(doc.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.issue(doc.user())
}

// GetSession returns the user behind a live token.
func (p *MongoProvider) GetSession(ctx context.Context, token string) (*User, error) {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	revoked, err := p.revoked.IsRevoked(ctx, claims.Id)
	if err != nil {
		return nil, domain.Remote("check token", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	return claims.User(), nil
}

// SignOut revokes the token until it expires.
func (p *MongoProvider) SignOut(ctx context.Context, token string) error {
	claims, err := p.tokens.Parse(token)
	if err != nil {
		return err
	}

	ttl := time.Until(claims.ExpiresAtTime())
	if err := p.revoked.Revoke(ctx, claims.Id, ttl); err != nil {
		return domain.Remote("sign out", err)
	}
	return nil
}

func (p *MongoProvider) issue(user User) (*AuthResult, error) {
	token, expiresAt, err := p.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, AccessToken: token, ExpiresAt: expiresAt}, nil
}
