package request

type MarkReadRequest struct {
	OwnerId        string `json:"owner_id"`
	NotificationId string `json:"notification_id"`
}

type MarkAllReadRequest struct {
	OwnerId string `json:"owner_id"`
}

type ListUnreadRequest struct {
	OwnerId string `json:"owner_id"`
}
