package msgraphtest

// PayloadListUsers is the default users collection.
const PayloadListUsers = `[
	{
		"id": "u1",
		"displayName": "Alice Alison",
		"userPrincipalName": "alice@example.com",
		"mail": "alice@example.com",
		"accountEnabled": true,
		"userType": "Member",
		"createdDateTime": "2023-01-15T09:00:00Z",
		"signInActivity": {
			"lastSignInDateTime": "2025-07-20T10:15:00Z",
			"lastSuccessfulSignInDateTime": "2025-07-20T10:15:00Z"
		}
	},
	{
		"id": "u2",
		"displayName": "Bob Bobert",
		"userPrincipalName": "bob@example.com",
		"mail": "bob@example.com",
		"accountEnabled": true,
		"userType": "Member",
		"createdDateTime": "2023-03-02T09:00:00Z",
		"signInActivity": {
			"lastSignInDateTime": "2025-05-01T08:00:00Z"
		}
	},
	{
		"id": "u3",
		"displayName": "Gavin Guest",
		"userPrincipalName": "gavin_gmail.com#EXT#@example.com",
		"accountEnabled": false,
		"userType": "Guest",
		"createdDateTime": "2024-06-10T09:00:00Z"
	}
]`

// PayloadUser1Methods lists registered methods for user u1: a password plus
// an Authenticator app.
const PayloadUser1Methods = `[
	{
		"@odata.type": "#microsoft.graph.passwordAuthenticationMethod",
		"id": "pw-1",
		"createdDateTime": "2023-01-15T09:05:00Z"
	},
	{
		"@odata.type": "#microsoft.graph.microsoftAuthenticatorAuthenticationMethod",
		"id": "ma-1",
		"displayName": "Pixel 9"
	}
]`

// PayloadUser2Methods lists registered methods for user u2: FIDO2 plus
// Windows Hello and no password, making the account passwordless capable.
const PayloadUser2Methods = `[
	{
		"@odata.type": "#microsoft.graph.fido2AuthenticationMethod",
		"id": "fk-1",
		"displayName": "YubiKey 5C"
	},
	{
		"@odata.type": "#microsoft.graph.windowsHelloForBusinessAuthenticationMethod",
		"id": "wh-1",
		"displayName": "DESKTOP-4FJ02"
	}
]`

const PayloadAuthenticatorDetail = `{
	"id": "ma-1",
	"displayName": "Pixel 9",
	"deviceTag": "SoftwareTokenActivated",
	"phoneAppVersion": "6.2501.0123",
	"device": {
		"id": "dev-1",
		"displayName": "Pixel 9",
		"operatingSystem": "Android"
	}
}`

const PayloadFIDO2Detail = `{
	"id": "fk-1",
	"displayName": "YubiKey 5C",
	"model": "YubiKey 5C NFC"
}`

const PayloadWindowsHelloDetail = `{
	"id": "wh-1",
	"displayName": "DESKTOP-4FJ02",
	"keyStrength": "normal",
	"device": {
		"id": "dev-2",
		"displayName": "DESKTOP-4FJ02",
		"operatingSystem": "Windows"
	}
}`

// PayloadListServicePrincipals is the default service principals collection.
const PayloadListServicePrincipals = `[
	{
		"id": "sp-object-1",
		"appId": "app-1",
		"displayName": "Payroll Web",
		"accountEnabled": true,
		"servicePrincipalType": "Application"
	},
	{
		"id": "sp-object-2",
		"appId": "app-2",
		"displayName": "CI Bot",
		"accountEnabled": true,
		"servicePrincipalType": "Application"
	},
	{
		"id": "sp-object-3",
		"appId": "app-3",
		"displayName": "Legacy Sync",
		"accountEnabled": false,
		"servicePrincipalType": "Application"
	}
]`

// PayloadListSignInActivities is the default aggregated activity report.
// app-3 is deliberately absent so it stays without aggregated data.
const PayloadListSignInActivities = `[
	{
		"id": "YXBwLTE=",
		"appId": "app-1",
		"lastSignInActivity": {
			"lastSignInDateTime": "2025-07-01T12:00:00Z",
			"lastSignInRequestId": "req-1"
		},
		"delegatedClientSignInActivity": {
			"lastSignInDateTime": "2025-07-01T12:00:00Z"
		}
	},
	{
		"id": "YXBwLTI=",
		"appId": "app-2",
		"lastSignInActivity": {
			"lastSignInDateTime": "2025-04-10T23:30:00Z"
		},
		"applicationAuthenticationClientSignInActivity": {
			"lastSignInDateTime": "2025-04-10T23:30:00Z"
		}
	}
]`

// PayloadListSignIns is the default real-time sign-in log, newest first the
// way Graph returns it.
const PayloadListSignIns = `[
	{
		"id": "s1",
		"createdDateTime": "2025-07-22T10:00:00Z",
		"appId": "app-1",
		"appDisplayName": "Payroll Web",
		"userPrincipalName": "alice@example.com",
		"ipAddress": "198.51.100.4",
		"status": {"errorCode": 0}
	},
	{
		"id": "s2",
		"createdDateTime": "2025-07-21T09:00:00Z",
		"appId": "app-1",
		"appDisplayName": "Payroll Web",
		"userPrincipalName": "bob@example.com",
		"ipAddress": "198.51.100.7",
		"status": {"errorCode": 50126, "failureReason": "Invalid username or password."}
	}
]`

// PayloadListDirectoryAudits is the default audit log slice.
const PayloadListDirectoryAudits = `[
	{
		"id": "a1",
		"activityDateTime": "2025-07-19T16:40:00Z",
		"activityDisplayName": "Update application",
		"category": "ApplicationManagement",
		"result": "success",
		"targetResources": [
			{"id": "sp-object-1", "displayName": "Payroll Web", "type": "Application"}
		]
	}
]`
