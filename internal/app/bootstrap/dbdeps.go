// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database/back-end dependencies for the app.
//
// Services is allocated by ConnectDB and filled in by Startup, so every
// later hook sees the same service graph.
type DBDeps struct {
	RulePostMongoClient   *mongo.Client
	RulePostMongoDatabase *mongo.Database
	Redis                 *redis.Client // nil without redis_addr
	Services              *Services
}
