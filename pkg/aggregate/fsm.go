package aggregate

import "github.com/cimkeys/cim-keys/pkg/types"

var personTransitions = newTable(map[string][]string{
	string(types.PersonCreated):    {string(types.PersonActive)},
	string(types.PersonActive):     {string(types.PersonSuspended), string(types.PersonRetired)},
	string(types.PersonSuspended):  {string(types.PersonActive), string(types.PersonTerminated)},
	string(types.PersonRetired):    {},
	string(types.PersonTerminated): {},
})

// ValidatePersonTransition reports an error unless from -> to is a legal
// Person transition.
func ValidatePersonTransition(from, to types.PersonState) error {
	return personTransitions.validate("person", string(from), string(to))
}

var organizationTransitions = newTable(map[string][]string{
	string(types.OrganizationForming):   {string(types.OrganizationActive)},
	string(types.OrganizationActive):    {string(types.OrganizationSuspended), string(types.OrganizationDissolved)},
	string(types.OrganizationSuspended): {string(types.OrganizationActive), string(types.OrganizationDissolved)},
	string(types.OrganizationDissolved): {},
})

// ValidateOrganizationTransition reports an error unless from -> to is a
// legal Organization transition.
func ValidateOrganizationTransition(from, to types.OrganizationState) error {
	return organizationTransitions.validate("organization", string(from), string(to))
}

var locationTransitions = newTable(map[string][]string{
	string(types.LocationAvailable):      {string(types.LocationInUse), string(types.LocationMaintenance), string(types.LocationDecommissioned)},
	string(types.LocationInUse):          {string(types.LocationAvailable), string(types.LocationMaintenance), string(types.LocationDecommissioned)},
	string(types.LocationMaintenance):    {string(types.LocationAvailable), string(types.LocationDecommissioned)},
	string(types.LocationDecommissioned): {},
})

// ValidateLocationTransition reports an error unless from -> to is a
// legal Location transition.
func ValidateLocationTransition(from, to types.LocationState) error {
	return locationTransitions.validate("location", string(from), string(to))
}

var certificateTransitions = newTable(map[string][]string{
	string(types.CertificatePending): {string(types.CertificateActive), string(types.CertificateRevoked)},
	string(types.CertificateActive):  {string(types.CertificateExpired), string(types.CertificateRevoked)},
	string(types.CertificateExpired): {string(types.CertificateRevoked)},
	string(types.CertificateRevoked): {},
})

// ValidateCertificateTransition reports an error unless from -> to is a
// legal Certificate transition.
func ValidateCertificateTransition(from, to types.CertificateState) error {
	return certificateTransitions.validate("certificate", string(from), string(to))
}

var keyTransitions = newTable(map[string][]string{
	string(types.KeyGenerated):   {string(types.KeyActive)},
	string(types.KeyActive):      {string(types.KeyRotated), string(types.KeyCompromised), string(types.KeyArchived)},
	string(types.KeyRotated):     {string(types.KeyArchived), string(types.KeyDestroyed)},
	string(types.KeyCompromised): {string(types.KeyDestroyed)},
	string(types.KeyArchived):    {string(types.KeyDestroyed)},
	string(types.KeyDestroyed):   {},
})

// ValidateKeyTransition reports an error unless from -> to is a legal
// Key transition.
func ValidateKeyTransition(from, to types.KeyState) error {
	return keyTransitions.validate("key", string(from), string(to))
}

var yubiKeyTransitions = newTable(map[string][]string{
	string(types.YubiKeyUnprovisioned): {string(types.YubiKeyProvisioned)},
	string(types.YubiKeyProvisioned):   {string(types.YubiKeyActive), string(types.YubiKeyCompromised)},
	string(types.YubiKeyActive):        {string(types.YubiKeyRetired), string(types.YubiKeyCompromised)},
	string(types.YubiKeyRetired):       {},
	string(types.YubiKeyCompromised):   {},
})

// ValidateYubiKeyTransition reports an error unless from -> to is a
// legal YubiKey transition.
func ValidateYubiKeyTransition(from, to types.YubiKeyState) error {
	return yubiKeyTransitions.validate("yubikey", string(from), string(to))
}

var natsOperatorTransitions = newTable(map[string][]string{
	string(types.NatsOperatorCreated): {string(types.NatsOperatorActive)},
	string(types.NatsOperatorActive):  {string(types.NatsOperatorRetired)},
	string(types.NatsOperatorRetired): {},
})

// ValidateNatsOperatorTransition reports an error unless from -> to is a
// legal NatsOperator transition.
func ValidateNatsOperatorTransition(from, to types.NatsOperatorState) error {
	return natsOperatorTransitions.validate("nats_operator", string(from), string(to))
}

var natsAccountTransitions = newTable(map[string][]string{
	string(types.NatsAccountPending):   {string(types.NatsAccountActive), string(types.NatsAccountRevoked)},
	string(types.NatsAccountActive):    {string(types.NatsAccountSuspended), string(types.NatsAccountRevoked)},
	string(types.NatsAccountSuspended): {string(types.NatsAccountActive), string(types.NatsAccountRevoked)},
	string(types.NatsAccountRevoked):   {},
})

// ValidateNatsAccountTransition reports an error unless from -> to is a
// legal NatsAccount transition.
func ValidateNatsAccountTransition(from, to types.NatsAccountState) error {
	return natsAccountTransitions.validate("nats_account", string(from), string(to))
}

var natsUserTransitions = newTable(map[string][]string{
	string(types.NatsUserPending): {string(types.NatsUserActive), string(types.NatsUserRevoked)},
	string(types.NatsUserActive):  {string(types.NatsUserLocked), string(types.NatsUserRevoked)},
	string(types.NatsUserLocked):  {string(types.NatsUserActive), string(types.NatsUserRevoked)},
	string(types.NatsUserRevoked): {},
})

// ValidateNatsUserTransition reports an error unless from -> to is a
// legal NatsUser transition.
func ValidateNatsUserTransition(from, to types.NatsUserState) error {
	return natsUserTransitions.validate("nats_user", string(from), string(to))
}

var relationshipTransitions = newTable(map[string][]string{
	string(types.RelationshipProposed):   {string(types.RelationshipActive), string(types.RelationshipTerminated)},
	string(types.RelationshipActive):     {string(types.RelationshipExpired), string(types.RelationshipTerminated)},
	string(types.RelationshipExpired):    {},
	string(types.RelationshipTerminated): {},
})

// ValidateRelationshipTransition reports an error unless from -> to is a
// legal Relationship transition.
func ValidateRelationshipTransition(from, to types.RelationshipState) error {
	return relationshipTransitions.validate("relationship", string(from), string(to))
}

var manifestTransitions = newTable(map[string][]string{
	string(types.ManifestBuilding): {string(types.ManifestSealed)},
	string(types.ManifestSealed):   {string(types.ManifestExported)},
	string(types.ManifestExported): {},
})

// ValidateManifestTransition reports an error unless from -> to is a
// legal Manifest transition.
func ValidateManifestTransition(from, to types.ManifestState) error {
	return manifestTransitions.validate("manifest", string(from), string(to))
}
