package user

// User is the slice of a player record this service reads and updates.
// Accounts themselves are owned by the identity provider.
type User struct {
	ID        string        `json:"id" bson:"_id"`
	Statistic UserStatistic `json:"statistic" bson:"statistic"`
}

type UserStatistic struct {
	Wins   int `json:"wins" bson:"wins"`
	Losses int `json:"losses" bson:"losses"`
}
