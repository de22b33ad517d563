package msgraph

// DirectoryObject is the base set of fields shared by directory entities.
type DirectoryObject struct {
	ID          *string `json:"id,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
}

// User represents a directory user, optionally carrying the sign-in
// activity facet when it was requested via $select.
type User struct {
	DirectoryObject

	UserPrincipalName *string         `json:"userPrincipalName,omitempty"`
	Mail              *string         `json:"mail,omitempty"`
	AccountEnabled    *bool           `json:"accountEnabled,omitempty"`
	UserType          *string         `json:"userType,omitempty"`
	CreatedDateTime   *string         `json:"createdDateTime,omitempty"`
	SignInActivity    *SignInActivity `json:"signInActivity,omitempty"`
}

// SignInActivity is the per-user sign-in activity facet. Timestamps are
// kept as raw strings; the provider is not consistent about formats, so
// parsing is left to the consumer.
type SignInActivity struct {
	LastSignInDateTime               *string `json:"lastSignInDateTime,omitempty"`
	LastSignInRequestID              *string `json:"lastSignInRequestId,omitempty"`
	LastNonInteractiveSignInDateTime *string `json:"lastNonInteractiveSignInDateTime,omitempty"`
	LastSuccessfulSignInDateTime     *string `json:"lastSuccessfulSignInDateTime,omitempty"`
}

// ServicePrincipal represents an application's service principal in the
// directory.
type ServicePrincipal struct {
	DirectoryObject

	AppID                *string `json:"appId,omitempty"`
	AccountEnabled       *bool   `json:"accountEnabled,omitempty"`
	ServicePrincipalType *string `json:"servicePrincipalType,omitempty"`
}

// SignInActivityEntry is one timestamp slot of the aggregated
// service principal sign-in activity report.
type SignInActivityEntry struct {
	LastSignInDateTime  *string `json:"lastSignInDateTime,omitempty"`
	LastSignInRequestID *string `json:"lastSignInRequestId,omitempty"`
}

// ServicePrincipalSignInActivity is one row of the provider-maintained
// sign-in activity rollup, keyed by application id.
type ServicePrincipalSignInActivity struct {
	ID    *string `json:"id,omitempty"`
	AppID *string `json:"appId,omitempty"`

	LastSignInActivity                              *SignInActivityEntry `json:"lastSignInActivity,omitempty"`
	LastSuccessfulSignInActivity                    *SignInActivityEntry `json:"lastSuccessfulSignInActivity,omitempty"`
	DelegatedClientSignInActivity                   *SignInActivityEntry `json:"delegatedClientSignInActivity,omitempty"`
	DelegatedResourceSignInActivity                 *SignInActivityEntry `json:"delegatedResourceSignInActivity,omitempty"`
	ApplicationAuthenticationClientSignInActivity   *SignInActivityEntry `json:"applicationAuthenticationClientSignInActivity,omitempty"`
	ApplicationAuthenticationResourceSignInActivity *SignInActivityEntry `json:"applicationAuthenticationResourceSignInActivity,omitempty"`
}

// SignIn is one entry of the real-time sign-in log.
type SignIn struct {
	ID                *string       `json:"id,omitempty"`
	CreatedDateTime   *string       `json:"createdDateTime,omitempty"`
	AppID             *string       `json:"appId,omitempty"`
	AppDisplayName    *string       `json:"appDisplayName,omitempty"`
	UserPrincipalName *string       `json:"userPrincipalName,omitempty"`
	IPAddress         *string       `json:"ipAddress,omitempty"`
	Status            *SignInStatus `json:"status,omitempty"`
}

// SignInStatus carries the outcome of one sign-in attempt. ErrorCode zero
// means success.
type SignInStatus struct {
	ErrorCode     *int    `json:"errorCode,omitempty"`
	FailureReason *string `json:"failureReason,omitempty"`
}

// DirectoryAudit is one entry of the directory audit log.
type DirectoryAudit struct {
	ID                  *string          `json:"id,omitempty"`
	ActivityDateTime    *string          `json:"activityDateTime,omitempty"`
	ActivityDisplayName *string          `json:"activityDisplayName,omitempty"`
	Category            *string          `json:"category,omitempty"`
	Result              *string          `json:"result,omitempty"`
	TargetResources     []TargetResource `json:"targetResources,omitempty"`
}

// TargetResource identifies an object affected by an audited operation.
type TargetResource struct {
	ID          *string `json:"id,omitempty"`
	DisplayName *string `json:"displayName,omitempty"`
	Type        *string `json:"type,omitempty"`
}

// AuthenticationMethod is one method descriptor from a user's
// authentication methods collection. The concrete method type is carried
// by ODataType; fields that exist only on some method types are left nil
// on the others.
type AuthenticationMethod struct {
	ODataType    string  `json:"@odata.type,omitempty"`
	ID           *string `json:"id,omitempty"`
	DisplayName  *string `json:"displayName,omitempty"`
	PhoneNumber  *string `json:"phoneNumber,omitempty"`
	PhoneType    *string `json:"phoneType,omitempty"`
	EmailAddress *string `json:"emailAddress,omitempty"`
}

// Discriminator values carried in [AuthenticationMethod.ODataType].
const (
	ODataTypePasswordMethod            = "#microsoft.graph.passwordAuthenticationMethod"
	ODataTypeAuthenticatorMethod       = "#microsoft.graph.microsoftAuthenticatorAuthenticationMethod"
	ODataTypePhoneMethod               = "#microsoft.graph.phoneAuthenticationMethod"
	ODataTypeFIDO2Method               = "#microsoft.graph.fido2AuthenticationMethod"
	ODataTypeWindowsHelloMethod        = "#microsoft.graph.windowsHelloForBusinessAuthenticationMethod"
	ODataTypeEmailMethod               = "#microsoft.graph.emailAuthenticationMethod"
	ODataTypeTemporaryAccessPassMethod = "#microsoft.graph.temporaryAccessPassAuthenticationMethod"
	ODataTypeSoftwareOathMethod        = "#microsoft.graph.softwareOathAuthenticationMethod"
	ODataTypePlatformCredentialMethod  = "#microsoft.graph.platformCredentialAuthenticationMethod"
)

// Device is the device sub-resource expanded on some authentication
// method detail responses.
type Device struct {
	DirectoryObject

	OperatingSystem *string `json:"operatingSystem,omitempty"`
}

// AuthenticationMethodDetail is the enriched shape of a single
// authentication method, fetched per method instance.
type AuthenticationMethodDetail struct {
	ID              *string `json:"id,omitempty"`
	DisplayName     *string `json:"displayName,omitempty"`
	Model           *string `json:"model,omitempty"`
	PhoneAppVersion *string `json:"phoneAppVersion,omitempty"`
	DeviceTag       *string `json:"deviceTag,omitempty"`
	KeyStrength     *string `json:"keyStrength,omitempty"`
	Device          *Device `json:"device,omitempty"`
}
