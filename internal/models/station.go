package models

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// 字段长度上限，与数据库列一致
const (
	MaxNameLen          = 255
	MaxAddressLen       = 255
	MaxCityLen          = 100
	MaxStateLen         = 100
	MaxPostalCodeLen    = 20
	MaxConnectorTypeLen = 50
)

// Station 充电站
type Station struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Address    string    `json:"address" db:"address"`
	City       string    `json:"city" db:"city"`
	State      string    `json:"state" db:"state"`
	PostalCode string    `json:"postalCode" db:"postal_code"`
	Latitude   *float64  `json:"latitude,omitempty" db:"latitude"`   // 为空时不参与附近搜索
	Longitude  *float64  `json:"longitude,omitempty" db:"longitude"` // 为空时不参与附近搜索
	Approved   bool      `json:"approved" db:"is_approved"`
	OwnerID    int64     `json:"ownerId" db:"owner_id"`
	Ports      []*Port   `json:"ports"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// HasCoordinates 是否有完整经纬度
func (s *Station) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// HasPorts 是否至少有一个端口
func (s *Station) HasPorts() bool {
	return len(s.Ports) > 0
}

// FindPort 在站点内查找端口
func (s *Station) FindPort(portID int64) (*Port, bool) {
	for _, p := range s.Ports {
		if p.ID == portID {
			return p, true
		}
	}
	return nil, false
}

// Port 充电端口
type Port struct {
	ID            int64   `json:"id" db:"id"`
	StationID     int64   `json:"stationId" db:"station_id"`
	ConnectorType string  `json:"connectorType" db:"connector_type"`
	MaxPowerKw    float64 `json:"maxPowerKw" db:"max_power_kw"`     // kW
	PricePerHour  float64 `json:"pricePerHour" db:"price_per_hour"` // 每小时价格
}

// PortInput 创建/更新端口的字段
type PortInput struct {
	ConnectorType string  `json:"connectorType" binding:"required,max=50"`
	MaxPowerKw    float64 `json:"maxPowerKw" binding:"gt=0"`
	PricePerHour  float64 `json:"pricePerHour" binding:"gt=0"`
}

// Validate 校验端口字段
func (in PortInput) Validate() error {
	verr := &ValidationError{}
	in.collect(verr, "")
	if verr.HasErrors() {
		return verr
	}
	return nil
}

func (in PortInput) collect(verr *ValidationError, prefix string) {
	if strings.TrimSpace(in.ConnectorType) == "" {
		verr.Add(prefix+"connectorType", "must not be empty")
	}
	checkLen(verr, prefix+"connectorType", in.ConnectorType, MaxConnectorTypeLen)
	if in.MaxPowerKw <= 0 {
		verr.Add(prefix+"maxPowerKw", "must be greater than 0")
	}
	if in.PricePerHour <= 0 {
		verr.Add(prefix+"pricePerHour", "Price per hour must be a positive number.")
	}
}

// ToPort 转换为端口实体
func (in PortInput) ToPort(stationID int64) *Port {
	return &Port{
		StationID:     stationID,
		ConnectorType: strings.TrimSpace(in.ConnectorType),
		MaxPowerKw:    in.MaxPowerKw,
		PricePerHour:  in.PricePerHour,
	}
}

// StationInput 创建站点的请求字段
// 不包含审批状态和所有者，二者由服务端决定
type StationInput struct {
	Name       string      `json:"name" binding:"required,max=255"`
	Address    string      `json:"address" binding:"required,max=255"`
	City       string      `json:"city" binding:"required,max=100"`
	State      string      `json:"state" binding:"required,max=100"`
	PostalCode string      `json:"postalCode" binding:"required,max=20"`
	Latitude   *float64    `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude  *float64    `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Ports      []PortInput `json:"ports" binding:"omitempty,dive"`
}

// Validate 校验站点字段
func (in StationInput) Validate() error {
	verr := &ValidationError{}
	required := map[string]string{
		"name":       in.Name,
		"address":    in.Address,
		"city":       in.City,
		"state":      in.State,
		"postalCode": in.PostalCode,
	}
	for field, v := range required {
		if strings.TrimSpace(v) == "" {
			verr.Add(field, "must not be empty")
		}
		checkLen(verr, field, v, maxLen[field])
	}
	validateCoordinates(verr, in.Latitude, in.Longitude)
	for i, p := range in.Ports {
		p.collect(verr, portPrefix(i))
	}
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// ToStation 转换为站点实体，端口尚未分配 ID
func (in StationInput) ToStation(ownerID int64) *Station {
	st := &Station{
		Name:       strings.TrimSpace(in.Name),
		Address:    strings.TrimSpace(in.Address),
		City:       strings.TrimSpace(in.City),
		State:      strings.TrimSpace(in.State),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Approved:   false,
		OwnerID:    ownerID,
		Ports:      make([]*Port, 0, len(in.Ports)),
	}
	for _, p := range in.Ports {
		st.Ports = append(st.Ports, p.ToPort(0))
	}
	return st
}

// StationPatch 部分更新，nil 字段保持不变
// 审批状态和所有者不在此结构中，请求体里出现也会被忽略
type StationPatch struct {
	Name       *string  `json:"name" binding:"omitempty,max=255"`
	Address    *string  `json:"address" binding:"omitempty,max=255"`
	City       *string  `json:"city" binding:"omitempty,max=100"`
	State      *string  `json:"state" binding:"omitempty,max=100"`
	PostalCode *string  `json:"postalCode" binding:"omitempty,max=20"`
	Latitude   *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
}

// IsEmpty 没有任何字段需要更新
func (p StationPatch) IsEmpty() bool {
	return p.Name == nil && p.Address == nil && p.City == nil && p.State == nil &&
		p.PostalCode == nil && p.Latitude == nil && p.Longitude == nil
}

// Validate 校验提供的字段
func (p StationPatch) Validate() error {
	verr := &ValidationError{}
	fields := map[string]*string{
		"name":       p.Name,
		"address":    p.Address,
		"city":       p.City,
		"state":      p.State,
		"postalCode": p.PostalCode,
	}
	for field, v := range fields {
		if v == nil {
			continue
		}
		if strings.TrimSpace(*v) == "" {
			verr.Add(field, "must not be blank")
		}
		checkLen(verr, field, *v, maxLen[field])
	}
	validateCoordinates(verr, p.Latitude, p.Longitude)
	if verr.HasErrors() {
		return verr
	}
	return nil
}

// Apply 将非空字段合并到站点
func (p StationPatch) Apply(s *Station) {
	if p.Name != nil {
		s.Name = strings.TrimSpace(*p.Name)
	}
	if p.Address != nil {
		s.Address = strings.TrimSpace(*p.Address)
	}
	if p.City != nil {
		s.City = strings.TrimSpace(*p.City)
	}
	if p.State != nil {
		s.State = strings.TrimSpace(*p.State)
	}
	if p.PostalCode != nil {
		s.PostalCode = strings.TrimSpace(*p.PostalCode)
	}
	if p.Latitude != nil {
		lat := *p.Latitude
		s.Latitude = &lat
	}
	if p.Longitude != nil {
		lng := *p.Longitude
		s.Longitude = &lng
	}
}

func validateCoordinates(verr *ValidationError, lat, lng *float64) {
	if lat != nil && (*lat < -90 || *lat > 90) {
		verr.Add("latitude", "must be between -90 and 90")
	}
	if lng != nil && (*lng < -180 || *lng > 180) {
		verr.Add("longitude", "must be between -180 and 180")
	}
}

var maxLen = map[string]int{
	"name":       MaxNameLen,
	"address":    MaxAddressLen,
	"city":       MaxCityLen,
	"state":      MaxStateLen,
	"postalCode": MaxPostalCodeLen,
}

// checkLen 按去除首尾空白后的字符数校验
func checkLen(verr *ValidationError, field, v string, limit int) {
	if utf8.RuneCountInString(strings.TrimSpace(v)) > limit {
		verr.Add(field, "must be at most "+strconv.Itoa(limit)+" characters")
	}
}

func portPrefix(i int) string {
	return "ports[" + strconv.Itoa(i) + "]."
}
