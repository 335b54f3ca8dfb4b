package health

type pingOutput struct {
	Body Response
}

type Response struct {
	Status string `json:"status"`
}
