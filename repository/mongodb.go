package repository

import (
    "context"
    "log"
    "time"

    "go.mongodb.org/mongo-driver/bson"
    "go.mongodb.org/mongo-driver/mongo"
    "go.mongodb.org/mongo-driver/mongo/options"

    "github.com/inkround/inkround-backend/models"
)

const (
    mongoDatabase   = "inkround"
    mongoCollection = "completed_games"
)

func ConnectMongoDB(uri string) (*mongo.Client, error) {
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()

    client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
    if err != nil {
        return nil, err
    }
    if err := client.Ping(ctx, nil); err != nil {
        return nil, err
    }

    log.Println("Successfully connected to MongoDB")
    return client, nil
}

// MongoArchive stores finished-game transcripts as single documents, so
// facilitators can pull them back long after the row stores move on.
type MongoArchive struct {
    client *mongo.Client
}

func NewMongoArchive(client *mongo.Client) *MongoArchive {
    return &MongoArchive{client: client}
}

type archivedGame struct {
    GameID     string                  `bson:"game_id"`
    GroupID    string                  `bson:"group_id"`
    TurnOrder  []string                `bson:"turn_order"`
    Papers     []models.CompletedPaper `bson:"papers"`
    ArchivedAt time.Time               `bson:"archived_at"`
}

func (a *MongoArchive) ArchiveGame(ctx context.Context, game models.GameInstance, papers []models.CompletedPaper) error {
    collection := a.client.Database(mongoDatabase).Collection(mongoCollection)
    _, err := collection.InsertOne(ctx, archivedGame{
        GameID:     game.ID,
        GroupID:    game.GroupID,
        TurnOrder:  game.TurnOrder,
        Papers:     papers,
        ArchivedAt: time.Now().UTC(),
    })
    if err != nil {
        return err
    }
    log.Printf("Game %s archived to MongoDB", game.ID)
    return nil
}

// FetchArchivedGame returns the archived transcripts, or nil when the game
// was never archived.
func (a *MongoArchive) FetchArchivedGame(ctx context.Context, gameID string) ([]models.CompletedPaper, error) {
    collection := a.client.Database(mongoDatabase).Collection(mongoCollection)
    var archived archivedGame
    err := collection.FindOne(ctx, bson.M{"game_id": gameID}).Decode(&archived)
    if err == mongo.ErrNoDocuments {
        return nil, nil
    }
    if err != nil {
        return nil, err
    }
    return archived.Papers, nil
}
