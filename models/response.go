package models

type ApiResponse struct {
    Success bool        `json:"success"`
    Data    interface{} `json:"data"`
    Error   string      `json:"error,omitempty"`
}

func SuccessResponse(data interface{}) ApiResponse {
    return ApiResponse{Success: true, Data: data}
}
