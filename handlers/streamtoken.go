package handlers

import (
    "fmt"
    "time"

    "github.com/golang-jwt/jwt/v4"

    "github.com/inkround/inkround-backend/models"
)

const streamTokenTTL = 12 * time.Hour

// IssueStreamToken signs a short-lived token authorizing one participant to
// open an event stream for one group. EventSource cannot set request
// headers, so stream endpoints authenticate via this query-parameter token
// instead of the session header.
func IssueStreamToken(secret, participantID, groupID string) (string, error) {
    claims := models.StreamClaims{
        RegisteredClaims: jwt.RegisteredClaims{
            ExpiresAt: jwt.NewNumericDate(time.Now().Add(streamTokenTTL)),
        },
        ParticipantID: participantID,
        GroupID:       groupID,
    }
    token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    return token.SignedString([]byte(secret))
}

func ValidateStreamToken(secret, tokenStr string) (*models.StreamClaims, error) {
    claims := &models.StreamClaims{}
    token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
        if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
        }
        return []byte(secret), nil
    })
    if err != nil {
        return nil, err
    }
    if !token.Valid {
        return nil, fmt.Errorf("invalid token")
    }
    return claims, nil
}
