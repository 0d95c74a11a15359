package dto

// RegisterDeviceRequest links a device to a student identity.
type RegisterDeviceRequest struct {
	DeviceID     string  `json:"device_id" validate:"required,max=128"`
	StudentName  *string `json:"student_name,omitempty" validate:"omitempty,max=255"`
	MatricNumber *string `json:"matric_number,omitempty" validate:"omitempty,max=64"`
	ClassName    *string `json:"class_name,omitempty" validate:"omitempty,max=128"`
}
